// Package cli implements the administrative command line: creating user
// accounts directly against the database.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

type Registrar interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
}

// CreateUser prompts for the account fields on reader/w, asks for the
// password twice and registers the user.
func CreateUser(ctx context.Context, r Registrar, reader *bufio.Reader, w io.Writer) (*models.User, error) {
	firstName, err := GetSimpleText(reader, "First name", w)
	if err != nil {
		return nil, err
	}
	lastName, err := GetSimpleText(reader, "Last name (optional)", w)
	if err != nil {
		return nil, err
	}
	email, err := GetSimpleText(reader, "Email", w)
	if err != nil {
		return nil, err
	}

	password, err := GetPassword("Enter password", w)
	if err != nil {
		return nil, err
	}
	confirm, err := GetPassword("Repeat password", w)
	if err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	user, err := r.Register(ctx, services.RegisterInput{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "Created user %s <%s> (%s)\n", user.FullName(), user.Email, user.ID)
	return user, nil
}
