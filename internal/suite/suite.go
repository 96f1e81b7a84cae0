// Package suite builds the fixed sequence of availability API checks.
package suite

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the YYYY-MM-DD format used by every date parameter.
	DateLayout = "2006-01-02"

	// InvalidTeamCode is a team code the server must not know.
	InvalidTeamCode = "INVALID_TEAM"

	// InvalidDate is a day path segment the server must reject.
	InvalidDate = "invalid-date"

	windowDays = 7
)

// Target identifies the API and team under test.
type Target struct {
	BaseURL  string
	TeamCode string
	Password string
}

// Case is a single request definition executed once per run.
type Case struct {
	Name           string
	URL            string
	ExpectedStatus int
}

// Build returns the seven checks for target, in execution order.
// Dates are derived from now in now's location.
func Build(target Target, now time.Time) []Case {
	team := strings.TrimRight(target.BaseURL, "/") + "/api/availability/" + url.PathEscape(target.TeamCode)
	pw := target.Password

	today := FormatDate(now)
	start := FormatDate(now.AddDate(0, 0, -windowDays))
	end := FormatDate(now.AddDate(0, 0, windowDays))
	year, week := ISOWeek(now)

	return []Case{
		{
			Name:           "1. Get All Availability",
			URL:            withQuery(team, pw),
			ExpectedStatus: http.StatusOK,
		},
		{
			Name:           "2. Get Availability with Date Range",
			URL:            withQuery(team, pw, "startDate", start, "endDate", end),
			ExpectedStatus: http.StatusOK,
		},
		{
			Name:           "3. Get Team Summary",
			URL:            withQuery(team+"/summary", pw),
			ExpectedStatus: http.StatusOK,
		},
		{
			Name:           "4. Get Day Availability",
			URL:            withQuery(team+"/day/"+today, pw),
			ExpectedStatus: http.StatusOK,
		},
		{
			Name:           "5. Get Week Availability",
			URL:            withQuery(team+"/week/"+strconv.Itoa(year)+"/"+strconv.Itoa(week), pw),
			ExpectedStatus: http.StatusOK,
		},
		{
			Name:           "6. Invalid Team Code (should fail)",
			URL:            strings.TrimRight(target.BaseURL, "/") + "/api/availability/" + InvalidTeamCode,
			ExpectedStatus: http.StatusNotFound,
		},
		{
			Name:           "7. Invalid Date Format (should fail)",
			URL:            withQuery(team+"/day/"+InvalidDate, pw),
			ExpectedStatus: http.StatusBadRequest,
		},
	}
}

// FormatDate formats t as YYYY-MM-DD in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ISOWeek returns the ISO-8601 year and week number of t. Weeks start on
// Monday and week 1 is the week containing the year's first Thursday, so
// the year can differ from t's calendar year around January 1st.
func ISOWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// withQuery appends key/value pairs in order, followed by the password
// when one is set. The password is appended as given, unescaped, and is
// always the last parameter.
func withQuery(base, password string, kv ...string) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, kv[i]+"="+url.QueryEscape(kv[i+1]))
	}
	if password != "" {
		parts = append(parts, "password="+password)
	}
	if len(parts) == 0 {
		return base
	}
	return base + "?" + strings.Join(parts, "&")
}

var passwordParam = regexp.MustCompile(`password=[^"\s]*`)

// Redact masks the password query value in rawURL so the URL can be
// persisted or sent elsewhere. Everything after "password=" is masked,
// since the password is the last parameter and may itself contain '&'.
func Redact(rawURL string) string {
	q := strings.IndexByte(rawURL, '?')
	if q < 0 {
		return rawURL
	}
	query := rawURL[q+1:]
	i := 0
	if !strings.HasPrefix(query, "password=") {
		j := strings.Index(query, "&password=")
		if j < 0 {
			return rawURL
		}
		i = j + 1
	}
	return rawURL[:q+1] + query[:i] + "password=***"
}

// RedactText masks the password inside free text such as a transport
// error, which quotes the request URL. rawURL is the URL the text was
// produced for.
func RedactText(text, rawURL string) string {
	if rawURL != "" {
		text = strings.ReplaceAll(text, rawURL, Redact(rawURL))
	}
	return passwordParam.ReplaceAllLiteralString(text, "password=***")
}
