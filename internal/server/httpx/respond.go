package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// wantsJSON reports whether the client asked for JSON, either explicitly in
// Accept or by sending a JSON body without asking for HTML.
func wantsJSON(req *http.Request) bool {
	accept := req.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return isJSONBody(req) && !strings.Contains(accept, "text/html")
}

func isJSONBody(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
}

type taskJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"dueDate"`
	Completed bool      `json:"completed"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTaskJSON(t *models.Task, loc *time.Location) taskJSON {
	return taskJSON{
		ID:        t.ID,
		Title:     t.Title,
		DueDate:   t.DueDate.In(loc),
		Completed: t.Completed,
		UserID:    t.UserID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTaskList(ts []*models.Task, loc *time.Location) []taskJSON {
	out := make([]taskJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTaskJSON(t, loc))
	}
	return out
}

type groupedJSON struct {
	OverDue        []taskJSON `json:"overDue"`
	DueToday       []taskJSON `json:"dueToday"`
	DueLater       []taskJSON `json:"dueLater"`
	CompletedItems []taskJSON `json:"completedItems"`
}

func toGroupedJSON(g *services.Grouped, loc *time.Location) groupedJSON {
	return groupedJSON{
		OverDue:        toTaskList(g.Overdue, loc),
		DueToday:       toTaskList(g.DueToday, loc),
		DueLater:       toTaskList(g.DueLater, loc),
		CompletedItems: toTaskList(g.Completed, loc),
	}
}
