package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"guild-contributions/adapters"
	"guild-contributions/extractor"
	"guild-contributions/internal/types"
)

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusResponse describes the current or last run
type StatusResponse struct {
	Running  bool              `json:"running"`
	Summary  *types.RunSummary `json:"summary,omitempty"`
	Error    string            `json:"error,omitempty"`
	Progress []types.LogEntry  `json:"progress"`
}

// Server exposes the run and export actions over HTTP
type Server struct {
	logger    *logrus.Logger
	config    *types.Config
	extractor *extractor.Extractor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	summary *types.RunSummary
	runErr  error
}

// NewServer creates a new API server driving surface
func NewServer(config *types.Config, logger *logrus.Logger, surface extractor.Surface) *Server {
	return &Server{
		logger:    logger,
		config:    config,
		extractor: extractor.NewExtractor(surface, config, logger),
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scrape", s.handleScrape)
	mux.HandleFunc("/abort", s.handleAbort)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// handleScrape starts a fresh run in the background
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendError(w, "A run is already in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.summary = nil
	s.runErr = nil
	done := s.done
	s.mu.Unlock()

	s.logger.Info("API request received: starting run")
	go func() {
		defer close(done)
		defer cancel()
		summary, err := s.extractor.Run(ctx)
		if err != nil {
			s.logger.Errorf("Run failed: %v", err)
		}

		s.mu.Lock()
		s.running = false
		s.summary = summary
		s.runErr = err
		s.mu.Unlock()
	}()

	s.sendJSON(w, http.StatusAccepted, APIResponse{Success: true})
}

// handleAbort stops the current run after the member in progress
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	running, cancel := s.running, s.cancel
	s.mu.Unlock()
	if !running {
		s.sendError(w, "No run in progress", http.StatusConflict)
		return
	}

	cancel()
	s.sendJSON(w, http.StatusAccepted, APIResponse{Success: true})
}

// handleStatus reports progress of the current or last run
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := StatusResponse{
		Running:  s.running,
		Summary:  s.summary,
		Progress: s.extractor.Log(),
	}
	if s.runErr != nil {
		status.Error = s.runErr.Error()
	}
	s.mu.Unlock()

	s.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: status})
}

// handleRecords returns the records collected so far
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.extractor.Records()})
}

// handleExport offers the records collected so far as a CSV download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if len(s.extractor.Records()) == 0 {
		s.sendError(w, "No records to export", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := s.extractor.ExportCSV(&buf); err != nil {
		s.logger.Errorf("Failed to export records: %v", err)
		s.sendError(w, "Export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, extractor.ExportFilename(s.config.Domain)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

// Wait blocks until the current run, if any, has finished
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close aborts any run in progress and waits for it to stop
func (s *Server) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.Wait()
}

// Start starts the API server
func (s *Server) Start(port string) error {
	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /scrape  - Start a fresh contributions run")
	s.logger.Info("  POST /abort   - Stop the run after the current member")
	s.logger.Info("  GET  /status  - Run progress and summary")
	s.logger.Info("  GET  /records - Records collected so far (JSON)")
	s.logger.Info("  GET  /export  - Records collected so far (CSV download)")
	s.logger.Info("  GET  /health  - Health check")

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Get port from environment variable, default to 8080
	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
	}

	logger := newLogger()
	config := types.DefaultConfig()
	config.RemoteURL = os.Getenv("CHROME_REMOTE_URL")
	if target, ok := os.LookupEnv("TARGET_URL"); ok {
		config.TargetURL = target
	}

	adapter := adapters.NewManarionAdapter(config, logger)
	if err := adapter.Open(context.Background()); err != nil {
		adapter.Close()
		logger.Fatalf("Failed to open guild page: %v", err)
	}

	// Create and start server
	server := NewServer(config, logger, adapter)
	log.Printf("Starting API server on port %s", serverPort)
	err := server.Start(serverPort)

	// release the browser before exiting
	server.Close()
	adapter.Close()
	logger.Fatalf("API server stopped: %v", err)
}
