package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/httputil"
	"github.com/pillbox/pillbox-backend/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).ParseFS(templateFS, "templates/*.html"))

// Banner styles
const (
	kindSuccess = "success"
	kindError   = "error"
)

type rowView struct {
	*repository.Medication
	Level      service.StockLevel
	LevelClass string
}

type pageData struct {
	Message     string
	MessageKind string
	Alerts      []service.Alert
	Rows        []rowView
	Boxes       []int
}

// medicationForm is the add and update form as posted by the dashboard
type medicationForm struct {
	BoxID        int    `form:"box_id" validate:"min=1"`
	MedicationID int    `form:"med_id" validate:"min=0"`
	Name         string `form:"name" validate:"required,max=100"`
	Total        int    `form:"total" validate:"min=0"`
	PerIntake    int    `form:"per_intake" validate:"min=1"`
	TwiceDaily   bool   `form:"times_per_day"`
	Time1        string `form:"t1" validate:"required,datetime=15:04"`
	Time2        string `form:"t2" validate:"required_if=TwiceDaily true,omitempty,datetime=15:04"`
}

func (f *medicationForm) medication() *repository.Medication {
	m := &repository.Medication{
		BoxID:          f.BoxID,
		MedicationID:   f.MedicationID,
		Name:           f.Name,
		TotalPills:     f.Total,
		PillsPerIntake: f.PerIntake,
		DosesPerDay:    1,
		ScheduleTime1:  f.Time1,
	}
	if f.TwiceDaily {
		t2 := f.Time2
		m.DosesPerDay = 2
		m.ScheduleTime2 = &t2
	}
	return m
}

// DashboardHandler serves the operator page and routes device reports
// posted to the same URL
type DashboardHandler struct {
	service *service.DispenserService
	device  http.Handler
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler. device receives
// every JSON POST.
func NewDashboardHandler(svc *service.DispenserService, device http.Handler, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		device:  device,
		logger:  log,
	}
}

// Post dispatches a POST to the device endpoint or the form actions
func (h *DashboardHandler) Post(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.device.ServeHTTP(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.render(w, r, "Error: could not read form.", kindError)
		return
	}

	switch {
	case r.PostForm.Has("add_med"):
		h.add(w, r)
	case r.PostForm.Has("update_med"):
		h.update(w, r)
	default:
		h.render(w, r, "", "")
	}
}

// Show renders the dashboard, deleting a box first when ?delete=N is given
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("delete")
	if raw == "" {
		h.render(w, r, "", "")
		return
	}

	// A box number that does not parse matches no row
	boxID, err := strconv.Atoi(raw)
	if err != nil {
		h.render(w, r, "Record deleted.", kindSuccess)
		return
	}

	if err := h.service.DeleteMedication(r.Context(), boxID); err != nil {
		h.logger.Error().Err(err).Int("box_id", boxID).Msg("failed to delete medication")
		h.render(w, r, "Delete failed: "+reason(err), kindError)
		return
	}

	h.render(w, r, "Record deleted.", kindSuccess)
}

func (h *DashboardHandler) add(w http.ResponseWriter, r *http.Request) {
	form, err := parseMedicationForm(r, true)
	if err != nil {
		h.render(w, r, "Error: "+reason(err), kindError)
		return
	}

	if err := h.service.AddMedication(r.Context(), form.medication()); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			h.render(w, r, fmt.Sprintf("Error: Box #%d is already occupied.", form.BoxID), kindError)
			return
		}
		h.logFailure(err, form.BoxID, "failed to add medication")
		h.render(w, r, "Error: "+reason(err), kindError)
		return
	}

	h.render(w, r, fmt.Sprintf("Medication added successfully to Box #%d", form.BoxID), kindSuccess)
}

func (h *DashboardHandler) update(w http.ResponseWriter, r *http.Request) {
	form, err := parseMedicationForm(r, false)
	if err != nil {
		h.render(w, r, "Update failed: "+reason(err), kindError)
		return
	}

	if err := h.service.UpdateMedication(r.Context(), form.medication()); err != nil {
		h.logFailure(err, form.BoxID, "failed to update medication")
		h.render(w, r, "Update failed: "+reason(err), kindError)
		return
	}

	h.render(w, r, fmt.Sprintf("Box #%d settings updated.", form.BoxID), kindSuccess)
}

func (h *DashboardHandler) logFailure(err error, boxID int, msg string) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		h.logger.Debug().Err(err).Int("box_id", boxID).Msg(msg)
		return
	}
	h.logger.Error().Err(err).Int("box_id", boxID).Msg(msg)
}

// render reads the current table and writes the page. The page is rendered
// even when the read fails so the operator still sees the message.
func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, message, kind string) {
	data := pageData{
		Message:     message,
		MessageKind: kind,
		Boxes:       make([]int, h.service.BoxCount()),
	}
	for i := range data.Boxes {
		data.Boxes[i] = i + 1
	}

	status := http.StatusOK
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.WithRequestID(httputil.GetRequestID(r.Context())).Error().Err(err).Msg("failed to load medications")
		status = http.StatusInternalServerError
		data.Message = "Error: could not load medications."
		data.MessageKind = kindError
	} else {
		data.Alerts = dash.Alerts
		data.Rows = make([]rowView, len(dash.Medications))
		for i, m := range dash.Medications {
			level := service.LevelFor(m.TotalPills)
			data.Rows[i] = rowView{Medication: m, Level: level, LevelClass: strings.ToLower(string(level))}
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dashboard", data); err != nil {
		h.logger.Error().Err(err).Msg("failed to render dashboard")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// parseMedicationForm reads the posted fields. The second dose time is only
// taken when times_per_day is "2".
func parseMedicationForm(r *http.Request, withMedicationID bool) (*medicationForm, error) {
	bad := map[string]string{}
	number := func(key string, def int) int {
		raw := strings.TrimSpace(r.PostForm.Get(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			bad[key] = "must be a whole number"
		}
		return n
	}

	form := &medicationForm{
		BoxID:      number("box_id", 0),
		Name:       strings.TrimSpace(r.PostForm.Get("name")),
		Total:      number("total", 0),
		PerIntake:  number("per_intake", 1),
		TwiceDaily: r.PostForm.Get("times_per_day") == "2",
		Time1:      strings.TrimSpace(r.PostForm.Get("t1")),
	}
	if withMedicationID {
		form.MedicationID = number("med_id", 0)
	}
	if form.TwiceDaily {
		form.Time2 = strings.TrimSpace(r.PostForm.Get("t2"))
	}

	if len(bad) > 0 {
		return nil, errors.Validation(bad)
	}
	if err := httputil.Validate(form); err != nil {
		return nil, err
	}
	return form, nil
}

// reason turns an error into operator-facing text without internal detail
func reason(err error) string {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return "internal server error"
	}

	switch {
	case len(appErr.Details) > 0:
		keys := make([]string, 0, len(appErr.Details))
		for k := range appErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " " + appErr.Details[k]
		}
		return strings.Join(parts, "; ")
	case errors.Is(err, errors.ErrNotFound):
		return "box is empty"
	default:
		return appErr.Message
	}
}
