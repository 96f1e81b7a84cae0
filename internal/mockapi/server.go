// Package mockapi serves an in-memory rendition of the availability API,
// for local development and for exercising the suite end to end.
package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Server holds the chi router and its fixture.
type Server struct {
	fixture *Fixture
	router  chi.Router
	logger  *slog.Logger
}

// New creates a new Server and registers all routes.
func New(fixture *Fixture, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		fixture: fixture,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/availability/{teamCode}", s.handleAvailability)
	r.Get("/api/availability/{teamCode}/summary", s.handleSummary)
	r.Get("/api/availability/{teamCode}/day/{date}", s.handleDay)
	r.Get("/api/availability/{teamCode}/week/{year}/{week}", s.handleWeek)
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// --- Views ---

type teamView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Slug                string `json:"slug"`
	InviteCode          string `json:"invite_code"`
	IsPasswordProtected bool   `json:"is_password_protected"`
	CreatedAt           string `json:"created_at,omitempty"`
}

func viewTeam(t *Team, withCreated bool) teamView {
	v := teamView{
		ID:                  t.ID,
		Name:                t.Name,
		Slug:                t.Slug,
		InviteCode:          t.InviteCode,
		IsPasswordProtected: t.Protected(),
	}
	if withCreated {
		v.CreatedAt = t.CreatedAt
	}
	return v
}

type memberView struct {
	ID         string  `json:"id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	FullName   string  `json:"full_name,omitempty"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Status     string  `json:"status"`
	IsHidden   bool    `json:"is_hidden"`
	OrderIndex int     `json:"order_index"`
	BirthDate  *string `json:"birth_date"`
}

func viewMember(m Member, withFullName bool) memberView {
	v := memberView{
		ID:         m.ID,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Email:      m.Email,
		Role:       m.Role,
		Status:     m.Status,
		IsHidden:   m.Hidden,
		OrderIndex: m.OrderIndex,
		BirthDate:  nullable(m.BirthDate),
	}
	if withFullName {
		v.FullName = m.FirstName + " " + m.LastName
	}
	return v
}

type entryView struct {
	ID       string `json:"id"`
	MemberID string `json:"member_id"`
	Date     string `json:"date"`
	Status   string `json:"status"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Team access ---

// resolveTeam looks up the team in the path and enforces its password.
// It writes the error response and returns false when access is denied.
func (s *Server) resolveTeam(w http.ResponseWriter, r *http.Request) (*Team, bool) {
	code := chi.URLParam(r, "teamCode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Team code is required")
		return nil, false
	}
	team, ok := s.fixture.Lookup(code)
	if !ok {
		writeError(w, http.StatusNotFound, "Team not found")
		return nil, false
	}
	if team.Protected() {
		password := r.URL.Query().Get("password")
		if password == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:   "Password required",
				Message: "This team is password-protected. Please provide a password.",
			})
			return nil, false
		}
		if HashPassword(password) != team.PasswordHash {
			writeError(w, http.StatusUnauthorized, "Invalid password")
			return nil, false
		}
	}
	return team, true
}

// members returns the team's members ordered by order index.
func members(t *Team, includeHidden bool, memberID string) []Member {
	out := make([]Member, 0, len(t.Members))
	for _, m := range t.Members {
		if !includeHidden && m.Hidden {
			continue
		}
		if memberID != "" && m.ID != memberID {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// entries returns availability entries of the given members between
// start and end inclusive. Empty bounds are open.
func entries(t *Team, ms []Member, start, end string) []Entry {
	ids := make(map[string]bool, len(ms))
	for _, m := range ms {
		ids[m.ID] = true
	}
	var out []Entry
	for _, e := range t.Availability {
		if !ids[e.MemberID] {
			continue
		}
		if start != "" && e.Date < start {
			continue
		}
		if end != "" && e.Date > end {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// isoWeekRange returns the Monday and Sunday of ISO week `week` of `year`.
func isoWeekRange(year, week int) (time.Time, time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+(week-1)*7)
	return start, start.AddDate(0, 0, 6)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type dateRange struct {
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type availabilityResponse struct {
	Team         teamView     `json:"team"`
	Members      []memberView `json:"members"`
	Availability []entryView  `json:"availability"`
	DateRange    dateRange    `json:"dateRange"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	team, ok := s.resolveTeam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, end := q.Get("startDate"), q.Get("endDate")
	if date := q.Get("date"); date != "" {
		start, end = date, date
	} else if q.Get("week") != "" && q.Get("year") != "" {
		week, werr := strconv.Atoi(q.Get("week"))
		year, yerr := strconv.Atoi(q.Get("year"))
		if werr != nil || yerr != nil || week < 1 || week > 53 {
			writeError(w, http.StatusBadRequest, "Invalid week or year parameter")
			return
		}
		ws, we := isoWeekRange(year, week)
		start, end = ws.Format(dateLayout), we.Format(dateLayout)
	}

	ms := members(team, q.Get("includeHidden") == "true", q.Get("memberId"))
	resp := availabilityResponse{
		Team:         viewTeam(team, false),
		Members:      make([]memberView, 0, len(ms)),
		Availability: []entryView{},
		DateRange:    dateRange{StartDate: nullable(start), EndDate: nullable(end)},
	}
	for _, m := range ms {
		resp.Members = append(resp.Members, viewMember(m, false))
	}
	for _, e := range entries(team, ms, start, end) {
		resp.Availability = append(resp.Availability, entryView(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type memberStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Hidden int `json:"hidden"`
}

type availabilityStats struct {
	TotalEntries int `json:"total_entries"`
	Available    int `json:"available"`
	Unavailable  int `json:"unavailable"`
	Maybe        int `json:"maybe"`
	UniqueDates  int `json:"unique_dates"`
}

type summaryRange struct {
	Earliest       *string `json:"earliest"`
	Latest         *string `json:"latest"`
	RequestedStart *string `json:"requested_start"`
	RequestedEnd   *string `json:"requested_end"`
}

type summaryResponse struct {
	Team       teamView `json:"team"`
	Statistics struct {
		Members      memberStats       `json:"members"`
		Availability availabilityStats `json:"availability"`
		DateRange    summaryRange      `json:"dateRange"`
	} `json:"statistics"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	team, ok := s.resolveTeam(w, r)
	if !ok {
		return
	}
	start, end := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")

	var resp summaryResponse
	resp.Team = viewTeam(team, true)

	all := members(team, true, "")
	resp.Statistics.Members.Total = len(all)
	for _, m := range all {
		if m.Hidden {
			resp.Statistics.Members.Hidden++
		} else if m.Status == "active" {
			resp.Statistics.Members.Active++
		}
	}

	es := entries(team, all, start, end)
	dates := make(map[string]bool)
	stats := &resp.Statistics.Availability
	stats.TotalEntries = len(es)
	for _, e := range es {
		dates[e.Date] = true
		switch e.Status {
		case "available":
			stats.Available++
		case "unavailable":
			stats.Unavailable++
		case "maybe":
			stats.Maybe++
		}
	}
	stats.UniqueDates = len(dates)

	dr := &resp.Statistics.DateRange
	if len(es) > 0 {
		// es is sorted by date.
		dr.Earliest = nullable(es[0].Date)
		dr.Latest = nullable(es[len(es)-1].Date)
	}
	dr.RequestedStart = nullable(start)
	dr.RequestedEnd = nullable(end)

	writeJSON(w, http.StatusOK, resp)
}

type dayMember struct {
	memberView
	Availability *string `json:"availability"`
}

type dayCounts struct {
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
	Maybe       int `json:"maybe"`
	NoData      int `json:"no_data"`
}

func (c *dayCounts) add(status *string) {
	if status == nil {
		c.NoData++
		return
	}
	switch *status {
	case "available":
		c.Available++
	case "unavailable":
		c.Unavailable++
	case "maybe":
		c.Maybe++
	}
}

type daySummary struct {
	TotalMembers int `json:"total_members"`
	dayCounts
}

type dayResponse struct {
	Team    teamView    `json:"team"`
	Date    string      `json:"date"`
	Members []dayMember `json:"members"`
	Summary daySummary  `json:"summary"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !datePattern.MatchString(date) {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.")
		return
	}
	team, ok := s.resolveTeam(w, r)
	if !ok {
		return
	}

	ms := members(team, r.URL.Query().Get("includeHidden") == "true", "")
	byMember := make(map[string]string)
	for _, e := range entries(team, ms, date, date) {
		byMember[e.MemberID] = e.Status
	}

	resp := dayResponse{
		Team:    viewTeam(team, false),
		Date:    date,
		Members: make([]dayMember, 0, len(ms)),
	}
	for _, m := range ms {
		dm := dayMember{memberView: viewMember(m, true), Availability: nullable(byMember[m.ID])}
		resp.Summary.add(dm.Availability)
		resp.Members = append(resp.Members, dm)
	}
	resp.Summary.TotalMembers = len(ms)

	writeJSON(w, http.StatusOK, resp)
}

type weekInfo struct {
	Year       int      `json:"year"`
	WeekNumber int      `json:"week_number"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Dates      []string `json:"dates"`
}

type weekMember struct {
	memberView
	Availability map[string]*string `json:"availability"`
}

type dailyStat struct {
	Date string `json:"date"`
	dayCounts
}

type weekSummary struct {
	TotalMembers     int `json:"total_members"`
	TotalAvailable   int `json:"total_available"`
	TotalUnavailable int `json:"total_unavailable"`
	TotalMaybe       int `json:"total_maybe"`
	TotalNoData      int `json:"total_no_data"`
}

type weekResponse struct {
	Team         teamView     `json:"team"`
	Week         weekInfo     `json:"week"`
	Members      []weekMember `json:"members"`
	DailySummary []dailyStat  `json:"daily_summary"`
	WeekSummary  weekSummary  `json:"week_summary"`
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	week, werr := strconv.Atoi(chi.URLParam(r, "week"))
	if yerr != nil || werr != nil || week < 1 || week > 53 || year < 1900 || year > 2100 {
		writeError(w, http.StatusBadRequest, "Invalid year or week number")
		return
	}
	team, ok := s.resolveTeam(w, r)
	if !ok {
		return
	}

	ws, we := isoWeekRange(year, week)
	dates := make([]string, 7)
	for i := range dates {
		dates[i] = ws.AddDate(0, 0, i).Format(dateLayout)
	}

	ms := members(team, r.URL.Query().Get("includeHidden") == "true", "")
	status := make(map[string]string)
	for _, e := range entries(team, ms, dates[0], dates[6]) {
		status[e.MemberID+"_"+e.Date] = e.Status
	}

	resp := weekResponse{
		Team: viewTeam(team, false),
		Week: weekInfo{
			Year:       year,
			WeekNumber: week,
			StartDate:  ws.Format(dateLayout),
			EndDate:    we.Format(dateLayout),
			Dates:      dates,
		},
		Members:      make([]weekMember, 0, len(ms)),
		DailySummary: make([]dailyStat, 0, len(dates)),
	}
	for _, m := range ms {
		wm := weekMember{memberView: viewMember(m, true), Availability: make(map[string]*string, len(dates))}
		for _, d := range dates {
			wm.Availability[d] = nullable(status[m.ID+"_"+d])
		}
		resp.Members = append(resp.Members, wm)
	}
	for _, d := range dates {
		ds := dailyStat{Date: d}
		for _, wm := range resp.Members {
			ds.add(wm.Availability[d])
		}
		resp.DailySummary = append(resp.DailySummary, ds)
		resp.WeekSummary.TotalAvailable += ds.Available
		resp.WeekSummary.TotalUnavailable += ds.Unavailable
		resp.WeekSummary.TotalMaybe += ds.Maybe
		resp.WeekSummary.TotalNoData += ds.NoData
	}
	resp.WeekSummary.TotalMembers = len(ms)

	writeJSON(w, http.StatusOK, resp)
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
