package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/announce"
	"github.com/friendsincode/mustard/internal/auth"
	"github.com/friendsincode/mustard/internal/confirm"
	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/twitch"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

// Monday 2026-10-19 10:00 UTC.
var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	api     *API
	router  chi.Router
	db      *gorm.DB
	bus     *events.Bus
	channel models.Channel
	token   string
}

func newTestEnv(t *testing.T, twitchURL string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Channel{}, &models.Setup{}, &models.Schedule{}, &models.Announcement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	channel := models.Channel{ID: "chan-1", TwitchID: "141981764", Login: "mustard", DisplayName: "Mustard", Timezone: "UTC", Checklist: "mic\n\n camera \r\nlights"}
	if err := db.Create(&channel).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	var twitchCfg twitch.Config
	if twitchURL != "" {
		twitchCfg = twitch.Config{BaseURL: twitchURL, ClientID: "cid", Token: "tok"}
	}
	tw := twitch.New(twitchCfg, nil, logger)
	announcer := announce.NewService(db, bus, announce.NewLogPoster(logger), 0, logger)

	a := New(db, testSecret, bus, announcer, tw, schedule.NewExportService(db, logger), confirm.NewTracker(0), 0, logger)
	a.now = func() time.Time { return testNow }

	router := chi.NewRouter()
	a.Routes(router)

	token, err := auth.Issue(testSecret, auth.Claims{ChannelID: channel.ID}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return &testEnv{api: a, router: router, db: db, bus: bus, channel: channel, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithToken(t, method, path, body, e.token)
}

func (e *testEnv) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.doWithToken(t, http.MethodGet, "/api/v1/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.doWithToken(t, http.MethodGet, "/api/v1/channels/chan-1", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", rr.Code)
	}

	other, err := auth.Issue(testSecret, auth.Claims{ChannelID: "chan-2"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rr = env.doWithToken(t, http.MethodGet, "/api/v1/channels/chan-1", nil, other)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("other channel: status=%d", rr.Code)
	}

	forged, err := auth.Issue([]byte("some-other-secret-some-other-secret"), auth.Claims{ChannelID: "chan-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rr = env.doWithToken(t, http.MethodGet, "/api/v1/channels/chan-1", nil, forged)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: status=%d", rr.Code)
	}
}

func TestChannelsCreateAndUpdate(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.doWithToken(t, http.MethodPost, "/api/v1/channels", map[string]any{"login": "Pepper", "timezone": "Europe/Berlin"}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created models.Channel
	decode(t, rr, &created)
	if created.Login != "pepper" || created.Timezone != "Europe/Berlin" || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	rr = env.doWithToken(t, http.MethodPost, "/api/v1/channels", map[string]any{"login": "x", "timezone": "Mars/Olympus"}, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad timezone: status=%d", rr.Code)
	}
	rr = env.doWithToken(t, http.MethodPost, "/api/v1/channels", map[string]any{"display_name": "x"}, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing login: status=%d", rr.Code)
	}

	rr = env.doWithToken(t, http.MethodGet, "/api/v1/channels", nil, "")
	var list []models.Channel
	decode(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("list = %d channels", len(list))
	}

	sub := env.bus.Subscribe(events.EventChannelUpdate)
	rr = env.do(t, http.MethodPatch, "/api/v1/channels/chan-1", map[string]any{"display_name": "Mustard Live"})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated models.Channel
	decode(t, rr, &updated)
	if updated.DisplayName != "Mustard Live" || updated.Login != "mustard" {
		t.Fatalf("updated = %+v", updated)
	}
	select {
	case <-sub:
	default:
		t.Fatalf("no channel update event")
	}
}

func TestChecklist(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.do(t, http.MethodGet, "/api/v1/channels/chan-1/checklist", nil)
	var body struct {
		Items []string `json:"items"`
	}
	decode(t, rr, &body)
	if strings.Join(body.Items, "|") != "mic|camera|lights" {
		t.Fatalf("items = %q", body.Items)
	}
}

func TestSchedulePutNormalizes(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/next", nil)
	var empty nextResponse
	decode(t, rr, &empty)
	if empty.Scheduled {
		t.Fatalf("empty schedule reported %+v", empty)
	}

	sub := env.bus.Subscribe(events.EventScheduleUpdate)
	rr = env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{
		"days":                  []string{"", "9pm, 9:30am garbage", "", "7 pm", "", "", ""},
		"announce_lead_minutes": 15,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var saved scheduleResponse
	decode(t, rr, &saved)
	if saved.Days[1] != "09:30 21:00" || saved.Days[3] != "19:00" || saved.AnnounceLeadMinutes != 15 {
		t.Fatalf("saved = %+v", saved)
	}
	select {
	case payload := <-sub:
		if payload["channel_id"] != "chan-1" {
			t.Fatalf("payload = %v", payload)
		}
	default:
		t.Fatalf("no schedule update event")
	}

	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule", nil)
	var got scheduleResponse
	decode(t, rr, &got)
	if len(got.Days) != 7 || got.Days[1] != "09:30 21:00" {
		t.Fatalf("get = %+v", got)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{"days": make([]string, 8)})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("8 days: status=%d", rr.Code)
	}
}

func TestScheduleNextAndUpcoming(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.db.Create(&models.Schedule{ChannelID: "chan-1", Days: []string{"", "09:30 21:00", "", "19:00", "", "", ""}}).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/next", nil)
	var next nextResponse
	decode(t, rr, &next)
	if !next.Scheduled || next.Occurrence.Time != "21:00" || next.Label != "Today" || next.Occurrence.SecondsUntil != 11*3600 {
		t.Fatalf("next = %+v occ=%+v", next, next.Occurrence)
	}

	// Shifting back 12h moves the reference to Sunday 22:00.
	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/next?offset=43200", nil)
	decode(t, rr, &next)
	if next.Occurrence.Time != "09:30" || next.Label != "Tomorrow" {
		t.Fatalf("offset next = %+v", next.Occurrence)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/next?offset=-5", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative offset: status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/upcoming?n=3", nil)
	var upcoming struct {
		Upcoming []struct {
			Occurrence schedule.Occurrence `json:"occurrence"`
			Label      string              `json:"label"`
		} `json:"upcoming"`
	}
	decode(t, rr, &upcoming)
	if len(upcoming.Upcoming) != 3 {
		t.Fatalf("upcoming = %+v", upcoming)
	}
	wantTimes := []string{"21:00", "19:00", "09:30"}
	for i, item := range upcoming.Upcoming {
		if item.Occurrence.Time != wantTimes[i] {
			t.Fatalf("upcoming[%d] = %+v, want %s", i, item.Occurrence, wantTimes[i])
		}
	}

	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule/upcoming?n=0", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("n=0: status=%d", rr.Code)
	}
}

func TestScheduleICalExportImport(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule.ics", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unconfigured export: status=%d", rr.Code)
	}

	env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{"days": []string{"", "21:00", "", "", "", "18:30", ""}})
	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/schedule.ics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type %q", ct)
	}
	calendar := rr.Body.String()

	env.do(t, http.MethodPut, "/api/v1/channels/chan-1/schedule", map[string]any{"days": []string{}})
	rr = env.do(t, http.MethodPost, "/api/v1/channels/chan-1/schedule.ics", calendar)
	if rr.Code != http.StatusOK {
		t.Fatalf("import: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var imported scheduleResponse
	decode(t, rr, &imported)
	if imported.Days[1] != "21:00" || imported.Days[5] != "18:30" {
		t.Fatalf("imported = %+v", imported.Days)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/channels/chan-1/schedule.ics", "garbage")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("garbage import: status=%d", rr.Code)
	}
}

func TestSetupsTwoClickDelete(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, "/api/v1/channels/chan-1/setups", map[string]any{
		"category": "Software and Game Development",
		"title":    "building a thread splitter",
		"tags":     []string{"go", " go ", "", "english"},
		"tweet":    "live now",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var setup models.Setup
	decode(t, rr, &setup)
	if strings.Join(setup.Tags, ",") != "go,english" {
		t.Fatalf("tags = %q", setup.Tags)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/channels/chan-1/setups", map[string]any{"tweet": "only"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty setup: status=%d", rr.Code)
	}

	path := "/api/v1/channels/chan-1/setups/" + setup.ID
	if rr = env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusAccepted {
		t.Fatalf("first click: status=%d", rr.Code)
	}
	var count int64
	env.db.Model(&models.Setup{}).Count(&count)
	if count != 1 {
		t.Fatalf("deleted on first click")
	}

	if rr = env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("second click: status=%d body=%s", rr.Code, rr.Body.String())
	}
	env.db.Model(&models.Setup{}).Count(&count)
	if count != 0 {
		t.Fatalf("setup survived confirmation")
	}

	if rr = env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("third click: status=%d", rr.Code)
	}
}

func TestSetupDeleteExpiredConfirmation(t *testing.T) {
	env := newTestEnv(t, "")
	setup := models.Setup{ID: "setup-1", ChannelID: "chan-1", Title: "t"}
	env.db.Create(&setup)

	path := "/api/v1/channels/chan-1/setups/setup-1"
	env.do(t, http.MethodDelete, path, nil)

	env.api.now = func() time.Time { return testNow.Add(confirm.DefaultWindow) }
	if rr := env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusAccepted {
		t.Fatalf("click after window: status=%d, want re-armed", rr.Code)
	}
}

func TestThreadSplit(t *testing.T) {
	env := newTestEnv(t, "")

	text := strings.Repeat("word ", 30)
	rr := env.do(t, http.MethodPost, "/api/v1/thread/split", map[string]any{"text": text, "max_weight": 50, "cursor": 60})
	if rr.Code != http.StatusOK {
		t.Fatalf("split: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Segments []struct {
			Start  int    `json:"start"`
			Length int    `json:"length"`
			Raw    string `json:"raw"`
			Weight int    `json:"weight"`
		} `json:"segments"`
		Cursor *struct {
			Segment int `json:"segment"`
			Offset  int `json:"offset"`
		} `json:"cursor"`
	}
	decode(t, rr, &resp)

	if len(resp.Segments) < 3 {
		t.Fatalf("segments = %d", len(resp.Segments))
	}
	var joined strings.Builder
	for _, seg := range resp.Segments {
		joined.WriteString(seg.Raw)
		if seg.Weight > 50 {
			t.Fatalf("segment over limit: %+v", seg)
		}
	}
	if joined.String() != text {
		t.Fatalf("segments do not reconstruct the text")
	}
	if resp.Cursor == nil || resp.Cursor.Segment < 1 {
		t.Fatalf("cursor = %+v", resp.Cursor)
	}
}

func TestThreadSplitStalled(t *testing.T) {
	env := newTestEnv(t, "")

	// A link weighs more than the whole limit, so no prefix fits.
	body := map[string]any{"text": "https://example.com/launch is live", "max_weight": 10}
	rr := env.do(t, http.MethodPost, "/api/v1/thread/split", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("split: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "stalled" {
		t.Fatalf("error = %q, want stalled", resp["error"])
	}
}

func TestAnnouncements(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, "/api/v1/channels/chan-1/announcements", map[string]any{
		"text":    "live at nine",
		"post_at": testNow.Add(time.Hour).Format(time.RFC3339),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var ann models.Announcement
	decode(t, rr, &ann)

	rr = env.do(t, http.MethodPost, "/api/v1/channels/chan-1/announcements", map[string]any{"text": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty: status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/channels/chan-1/announcements", map[string]any{"text": "x", "post_at": "tonight"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad post_at: status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/channels/chan-1/announcements", nil)
	var list []models.Announcement
	decode(t, rr, &list)
	if len(list) != 1 || list[0].ID != ann.ID {
		t.Fatalf("list = %+v", list)
	}

	path := "/api/v1/channels/chan-1/announcements/" + ann.ID
	if rr = env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("cancel: status=%d", rr.Code)
	}
	if rr = env.do(t, http.MethodDelete, path, nil); rr.Code != http.StatusConflict {
		t.Fatalf("cancel twice: status=%d", rr.Code)
	}
	if rr = env.do(t, http.MethodDelete, "/api/v1/channels/chan-1/announcements/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown: status=%d", rr.Code)
	}
}

func TestMetadataUpdate(t *testing.T) {
	var (
		gotQuery string
		gotBody  map[string]any
	)
	helix := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/channels" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("broadcaster_id")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer helix.Close()

	env := newTestEnv(t, helix.URL)
	sub := env.bus.Subscribe(events.EventMetadataUpdate)

	rr := env.do(t, http.MethodPatch, "/api/v1/channels/chan-1/metadata", map[string]any{"title": "new title", "tags": []string{"go"}})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("patch: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if gotQuery != "141981764" || gotBody["title"] != "new title" {
		t.Fatalf("helix got query=%q body=%v", gotQuery, gotBody)
	}
	if _, ok := gotBody["game_id"]; ok {
		t.Fatalf("unset category sent: %v", gotBody)
	}
	select {
	case <-sub:
	default:
		t.Fatalf("no metadata event")
	}

	rr = env.do(t, http.MethodPatch, "/api/v1/channels/chan-1/metadata", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty update: status=%d", rr.Code)
	}
}

func TestTwitchNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPatch, "/api/v1/channels/chan-1/metadata", map[string]any{"title": "x"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("metadata: status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/categories?q=just", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("categories: status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/categories", nil)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty query: status=%d body=%s", rr.Code, rr.Body.String())
	}
}
