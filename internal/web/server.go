package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"texture-compressor-go/internal/batch"
	"texture-compressor-go/internal/compressor"
	"texture-compressor-go/internal/config"
	"texture-compressor-go/internal/statistics"
	"texture-compressor-go/internal/texture"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EncoderFactory builds the encoder for one batch.
type EncoderFactory func(cfg *config.Config) (compressor.Encoder, error)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	newEncoder EncoderFactory
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentRunID   string
	currentSummary *statistics.Summary
	jobsSucceeded  int
	jobsFailed     int
	batchDone      sync.WaitGroup
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ValidateRequest struct {
	Directory string `json:"directory"`
}

type CompressRequest struct {
	InputDirectory   string `json:"input_directory"`
	OutputDirectory  string `json:"output_directory"`
	Format           string `json:"format,omitempty"`
	IgnoreValidation bool   `json:"ignore_validation"`
	DryRun           bool   `json:"dry_run"`
}

type ValidationEntry struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Advisory bool   `json:"advisory"`
	Message  string `json:"message"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type JobResultMessage struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Format     string `json:"format"`
	Success    bool   `json:"success"`
	TimedOut   bool   `json:"timed_out"`
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer returns a Server using the encoder selected by cfg.
func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	return NewServerWithEncoder(cfg, log, batch.NewEncoder)
}

// NewServerWithEncoder returns a Server that builds encoders with factory.
func NewServerWithEncoder(cfg *config.Config, log *logrus.Logger, factory EncoderFactory) *Server {
	s := &Server{
		cfg:        cfg,
		log:        log,
		newEncoder: factory,
		router:     mux.NewRouter(),
		wsClients:  make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, no browser session to protect
			},
		},
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/formats", s.handleFormats).Methods("GET")
	api.HandleFunc("/validate", s.handleValidate).Methods("POST")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down and waits for a running batch to drain.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.batchDone.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Wait blocks until no batch is running.
func (s *Server) Wait() {
	s.batchDone.Wait()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	runID := s.currentRunID
	summary := s.currentSummary
	progress := map[string]int{
		"succeeded": s.jobsSucceeded,
		"failed":    s.jobsFailed,
	}
	s.operationMutex.RUnlock()

	var statsData interface{}
	if summary != nil {
		statsData = map[string]interface{}{
			"summary": summary.GetSummary(),
			"counts":  summary.Snapshot(),
		}
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"run_id":     runID,
			"progress":   progress,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    texture.Formats(),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Directory == "" {
		s.writeError(w, "Directory is required", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.Directory); err != nil || !info.IsDir() {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	cfg := *s.cfg
	cfg.InputDirectory = req.Directory
	runner := batch.NewRunner(&cfg, s.log, batch.NewValidator(&cfg, s.log), nil)

	results, err := runner.Validate(r.Context())
	var vErr *batch.ValidationError
	if err != nil && !errors.As(err, &vErr) {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]ValidationEntry, len(results))
	for i, res := range results {
		entries[i] = ValidationEntry{
			Path:     res.Path,
			Valid:    res.Valid,
			Advisory: res.Advisory,
			Message:  res.Message,
			Width:    res.Width,
			Height:   res.Height,
		}
	}

	s.writeJSON(w, APIResponse{
		Success: vErr == nil,
		Data:    entries,
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := *s.cfg
	cfg.InputDirectory = req.InputDirectory
	cfg.OutputDirectory = req.OutputDirectory
	if req.Format != "" {
		cfg.Formats = []string{req.Format}
	}
	cfg.Validation.IgnoreErrors = cfg.Validation.IgnoreErrors || req.IgnoreValidation
	cfg.Security.DryRun = req.DryRun

	if err := cfg.Validate(); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cfg.ValidatePaths(); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	encoder, err := s.newEncoder(&cfg)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.currentRunID = ""
	s.currentSummary = nil
	s.jobsSucceeded, s.jobsFailed = 0, 0
	s.batchDone.Add(1)
	s.operationMutex.Unlock()

	go s.runCompressAsync(&cfg, encoder)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runCompressAsync(cfg *config.Config, encoder compressor.Encoder) {
	defer s.batchDone.Done()

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"input_directory":  cfg.InputDirectory,
		"output_directory": cfg.OutputDirectory,
		"formats":          cfg.Formats,
		"in_place":         cfg.IsInPlace(),
		"dry_run":          cfg.Security.DryRun,
	})

	hook := func(res compressor.Result) {
		s.operationMutex.Lock()
		if res.Success {
			s.jobsSucceeded++
		} else {
			s.jobsFailed++
		}
		s.operationMutex.Unlock()

		s.broadcastWSMessage("job_result", JobResultMessage{
			InputPath:  res.Job.InputPath,
			OutputPath: res.Job.OutputPath,
			Format:     res.Job.Format.Name,
			Success:    res.Success,
			TimedOut:   res.TimedOut,
			Message:    res.Message,
			DurationMS: res.Duration().Milliseconds(),
		})
	}

	runner := batch.NewRunnerWithHook(cfg, s.log, batch.NewValidator(cfg, s.log), encoder, hook)
	runner.SetStartHook(func(runID string, summary *statistics.Summary) {
		s.operationMutex.Lock()
		s.currentRunID = runID
		s.currentSummary = summary
		s.operationMutex.Unlock()
	})
	report, err := runner.Run(context.Background())

	s.operationMutex.Lock()
	s.isRunning = false
	if report != nil {
		s.currentRunID = report.RunID
		s.currentSummary = report.Summary
	}
	s.operationMutex.Unlock()

	if err != nil {
		s.broadcastWSMessage("compress_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.broadcastWSMessage("compress_completed", map[string]interface{}{
		"run_id":     report.RunID,
		"statistics": report.Summary.Snapshot(),
	})
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
