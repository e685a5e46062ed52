package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/config"
	"github.com/anicoll/diffuser-panel/internal/pkg/database"
	"github.com/anicoll/diffuser-panel/internal/pkg/diffuser"
	"github.com/anicoll/diffuser-panel/internal/pkg/dispatch"
	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/publisher"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
	"github.com/anicoll/diffuser-panel/internal/pkg/update"
	"github.com/anicoll/diffuser-panel/internal/pkg/view"
	"github.com/anicoll/diffuser-panel/pkg/hasher"
)

type commander interface {
	SetSpeed(speed int)
	SetPower(on bool)
	SetTimer(minutes int)
	SetIntervalMode(enabled bool)
	SetIntervalTimes(onMinutes, offMinutes int)
	SaveWifi(ctx context.Context, ssid, password string) (string, error)
	SaveMqtt(ctx context.Context, host string, port int, user, password string) (string, error)
	SaveNight(ctx context.Context, settings model.NightSettings) error
	SetDeviceName(ctx context.Context, name string) error
	RotatePasswords(ctx context.Context, otaPassword, apPassword string) (string, error)
	Rfid(ctx context.Context, action model.RfidAction) (string, error)
	Reset(ctx context.Context) error
}

type refresher interface {
	RefreshFull(ctx context.Context) error
}

type updater interface {
	Check(ctx context.Context) error
	Install(ctx context.Context) error
	Refresh(ctx context.Context)
}

type diagnosticDevice interface {
	Diagnostic(ctx context.Context) (*model.Diagnostic, error)
	ButtonStates(ctx context.Context) (*model.ButtonStates, error)
	LedAction(ctx context.Context, action model.LedAction) error
	FanDiag(ctx context.Context, action model.FanDiagAction, value *int) (*model.FanDiagResult, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
	ClearLogs(ctx context.Context) error
	Passwords(ctx context.Context) (*model.PasswordStatus, error)
}

type buttonPoller interface {
	Open(ctx context.Context)
	Close()
	IsOpen() bool
}

// Archive is the optional Postgres-backed history store. Exported so the
// run command can pass a typed nil when no database is configured.
type Archive interface {
	ArchiveLogs(ctx context.Context, identifier string, entries []model.LogEntry) error
	GetArchivedLogs(ctx context.Context, identifier string, limit int) (database.ArchivedLogs, error)
	GetReadings(ctx context.Context, identifier, slug string, from, to *time.Time) (database.Readings, error)
}

type session struct {
	bannerDismissed bool
	expires         time.Time
}

type server struct {
	ctx        context.Context
	cfg        *config.PanelConfig
	store      *state.Store
	dispatcher commander
	poller     refresher
	tracker    updater
	device     diagnosticDevice
	buttons    buttonPoller
	db         Archive
	logger     *zap.Logger

	mu          sync.Mutex
	sessions    map[string]*session
	lastButtons *model.ButtonStates
	lastDiag    *model.Diagnostic
}

func New(ctx context.Context, cfg *config.PanelConfig, store *state.Store, d commander, p refresher, t updater, dev diagnosticDevice, db Archive) *server {
	if cfg.TokenSecret == "" {
		secret, err := hasher.GenerateToken(32)
		if err != nil {
			panic(err)
		}
		cfg.TokenSecret = secret
	}
	return &server{
		ctx:        ctx,
		cfg:        cfg,
		store:      store,
		dispatcher: d,
		poller:     p,
		tracker:    t,
		device:     dev,
		db:         db,
		logger:     zap.L(),
		sessions:   make(map[string]*session),
	}
}

// SetButtonPoller wires the diagnostics button poller. Done after
// construction because the poller's apply callback points back at the server.
func (s *server) SetButtonPoller(b buttonPoller) {
	s.buttons = b
}

// ApplyButtonStates is the button poller's apply callback.
func (s *server) ApplyButtonStates(states model.ButtonStates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastButtons = &states
}

func (s *server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)

	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	api.HandleFunc("/view", s.getView).Methods(http.MethodGet)
	api.HandleFunc("/view/banner/dismiss", s.dismissBanner).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)

	api.HandleFunc("/fan/power", s.fanPower).Methods(http.MethodPost)
	api.HandleFunc("/fan/speed", s.fanSpeed).Methods(http.MethodPost)
	api.HandleFunc("/fan/timer", s.fanTimer).Methods(http.MethodPost)
	api.HandleFunc("/fan/interval", s.fanInterval).Methods(http.MethodPost)
	api.HandleFunc("/fan/interval/times", s.fanIntervalTimes).Methods(http.MethodPost)

	api.HandleFunc("/wifi", s.saveWifi).Methods(http.MethodPost)
	api.HandleFunc("/mqtt", s.saveMqtt).Methods(http.MethodPost)
	api.HandleFunc("/night", s.saveNight).Methods(http.MethodPost)
	api.HandleFunc("/device/name", s.setDeviceName).Methods(http.MethodPost)
	api.HandleFunc("/passwords", s.getPasswords).Methods(http.MethodGet)
	api.HandleFunc("/passwords", s.rotatePasswords).Methods(http.MethodPost)
	api.HandleFunc("/rfid", s.rfid).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.reset).Methods(http.MethodPost)

	api.HandleFunc("/logs", s.getLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.clearLogs).Methods(http.MethodDelete)
	api.HandleFunc("/logs/archive", s.getArchivedLogs).Methods(http.MethodGet)
	api.HandleFunc("/history", s.getHistory).Methods(http.MethodGet)

	api.HandleFunc("/diagnostics", s.openDiagnostics).Methods(http.MethodGet)
	api.HandleFunc("/diagnostics/close", s.closeDiagnostics).Methods(http.MethodPost)
	api.HandleFunc("/diagnostics/buttons", s.getButtons).Methods(http.MethodGet)
	api.HandleFunc("/diagnostics/led", s.led).Methods(http.MethodPost)
	api.HandleFunc("/diagnostics/fan", s.fanDiag).Methods(http.MethodPost)

	api.HandleFunc("/update", s.getUpdate).Methods(http.MethodGet)
	api.HandleFunc("/update/check", s.updateCheck).Methods(http.MethodPost)
	api.HandleFunc("/update/install", s.updateInstall).Methods(http.MethodPost)

	return r
}

func (s *server) identifier() string {
	d := s.store.Current().Device
	return publisher.Identifier(&model.Device{ID: d.Mac, Model: model.DeviceModel})
}

// session returns the per-token session, pruning entries whose token has
// expired so the map stays bounded by the number of live tokens.
func (s *server) session(sid string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
		}
	}
	sess, ok := s.sessions[sid]
	if !ok {
		sess = &session{expires: now.Add(tokenTTL)}
		s.sessions[sid] = sess
	}
	return sess
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[loginRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if s.cfg.PasswordHash != "" && !hasher.PasswordCorrect(req.Password, s.cfg.PasswordHash) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid password"})
		return
	}
	token, err := s.issueToken()
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *server) getView(w http.ResponseWriter, r *http.Request) {
	sess := s.session(sessionID(r.Context()))
	s.mu.Lock()
	dismissed := sess.bannerDismissed
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, view.Compute(s.store.Current(), dismissed))
}

func (s *server) dismissBanner(w http.ResponseWriter, r *http.Request) {
	sess := s.session(sessionID(r.Context()))
	s.mu.Lock()
	sess.bannerDismissed = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.RefreshFull(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Current())
}

type powerRequest struct {
	On bool `json:"on"`
}

func (s *server) fanPower(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[powerRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.dispatcher.SetPower(req.On)
	w.WriteHeader(http.StatusAccepted)
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *server) fanSpeed(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[speedRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.dispatcher.SetSpeed(req.Speed)
	w.WriteHeader(http.StatusAccepted)
}

type timerRequest struct {
	Minutes int `json:"minutes"`
}

func (s *server) fanTimer(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[timerRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.dispatcher.SetTimer(req.Minutes)
	w.WriteHeader(http.StatusAccepted)
}

type intervalRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *server) fanInterval(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[intervalRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.dispatcher.SetIntervalMode(req.Enabled)
	w.WriteHeader(http.StatusAccepted)
}

type intervalTimesRequest struct {
	OnMinutes  int `json:"on_minutes"`
	OffMinutes int `json:"off_minutes"`
}

func (s *server) fanIntervalTimes(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[intervalTimesRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.dispatcher.SetIntervalTimes(req.OnMinutes, req.OffMinutes)
	w.WriteHeader(http.StatusAccepted)
}

type wifiRequest struct {
	Ssid     string `json:"ssid"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message,omitempty"`
}

func (s *server) saveWifi(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[wifiRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	msg, err := s.dispatcher.SaveWifi(r.Context(), req.Ssid, req.Password)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

type mqttRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (s *server) saveMqtt(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[mqttRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	msg, err := s.dispatcher.SaveMqtt(r.Context(), req.Host, req.Port, req.User, req.Password)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

type nightRequest struct {
	Enabled    bool   `json:"enabled"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Brightness int    `json:"brightness"`
}

func (s *server) saveNight(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[nightRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.dispatcher.SaveNight(r.Context(), model.NightSettings{
		Enabled:    req.Enabled,
		Start:      req.Start,
		End:        req.End,
		Brightness: req.Brightness,
	}); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *server) setDeviceName(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[nameRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.dispatcher.SetDeviceName(r.Context(), req.Name); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) getPasswords(w http.ResponseWriter, r *http.Request) {
	status, err := s.device.Passwords(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type rotateRequest struct {
	OtaPassword string `json:"ota_password"`
	ApPassword  string `json:"ap_password"`
}

func (s *server) rotatePasswords(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[rotateRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	msg, err := s.dispatcher.RotatePasswords(r.Context(), req.OtaPassword, req.ApPassword)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

type rfidRequest struct {
	Action string `json:"action"`
}

func (s *server) rfid(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[rfidRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	msg, err := s.dispatcher.Rfid(r.Context(), model.RfidAction(req.Action))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.Reset(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type logsResponse struct {
	Entries  []model.LogEntry `json:"entries"`
	Rendered []string         `json:"rendered"`
}

func (s *server) getLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.device.Logs(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	if s.db != nil {
		if err := s.db.ArchiveLogs(r.Context(), s.identifier(), entries); err != nil {
			s.logger.Warn("failed to archive device logs", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, logsResponse{
		Entries:  entries,
		Rendered: view.FormatLogEntries(entries, time.Now()),
	})
}

func (s *server) clearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.device.ClearLogs(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getArchivedLogs(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no archive configured"})
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.handleError(w, errors.Join(errBadRequest, err))
			return
		}
		limit = n
	}
	logs, err := s.db.GetArchivedLogs(r.Context(), s.identifier(), limit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no archive configured"})
		return
	}
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		s.handleError(w, errors.Join(errBadRequest, errors.New("slug is required")))
		return
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		s.handleError(w, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		s.handleError(w, err)
		return
	}
	readings, err := s.db.GetReadings(r.Context(), s.identifier(), slug, from, to)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// openDiagnostics returns the pin and peripheral report and starts the
// background button poll, which runs until the panel closes the section.
// While the section is open the cached report is served; led and fan test
// actions schedule a delayed refresh of that cache.
func (s *server) openDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cached := s.lastDiag
	open := s.buttons != nil && s.buttons.IsOpen()
	s.mu.Unlock()
	if open && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	diag, err := s.device.Diagnostic(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.mu.Lock()
	s.lastDiag = diag
	s.mu.Unlock()
	if s.buttons != nil {
		s.buttons.Open(s.ctx)
	}
	writeJSON(w, http.StatusOK, diag)
}

func (s *server) closeDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.buttons != nil {
		s.buttons.Close()
	}
	s.mu.Lock()
	s.lastDiag = nil
	s.lastButtons = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) scheduleDiagRefresh(after time.Duration) {
	time.AfterFunc(after, func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		diag, err := s.device.Diagnostic(ctx)
		if err != nil {
			s.logger.Warn("diagnostic refresh failed", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.lastDiag = diag
		s.mu.Unlock()
	})
}

func (s *server) getButtons(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cached := s.lastButtons
	s.mu.Unlock()
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	states, err := s.device.ButtonStates(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

type ledRequest struct {
	Action string `json:"action"`
}

func (s *server) led(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[ledRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	action := model.LedAction(req.Action)
	if err := s.device.LedAction(r.Context(), action); err != nil {
		s.handleError(w, err)
		return
	}
	// the led test sequence takes a few seconds to run through its colors
	delay := 500 * time.Millisecond
	if action == model.LedTest {
		delay = 4 * time.Second
	}
	s.scheduleDiagRefresh(delay)
	w.WriteHeader(http.StatusOK)
}

type fanDiagRequest struct {
	Action string `json:"action"`
	Value  *int   `json:"value,omitempty"`
}

func (s *server) fanDiag(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[fanDiagRequest](r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	action := model.FanDiagAction(req.Action)
	result, err := s.device.FanDiag(r.Context(), action, req.Value)
	if err != nil {
		s.handleError(w, err)
		return
	}
	delay := 500 * time.Millisecond
	if action == model.FanDiagTest {
		delay = 5 * time.Second
	}
	s.scheduleDiagRefresh(delay)
	writeJSON(w, http.StatusOK, result)
}

func (s *server) getUpdate(w http.ResponseWriter, r *http.Request) {
	s.tracker.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.store.Current().Update)
}

func (s *server) updateCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Check(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) updateInstall(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Install(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, dispatch.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, diffuser.ErrRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, update.ErrUnsupported):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	var out T
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	return &out, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	return &t, nil
}
