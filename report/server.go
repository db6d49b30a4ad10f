package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Server exposes the journal over HTTP and streams live events over a websocket.
type Server struct {
	journal  *journal.Journal
	hub      *Hub
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewServer(j *journal.Journal, hub *Hub, log *logrus.Logger) *Server {
	return &Server{
		journal: j,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[REPORT] %s - %s %s %d\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
			)
		},
		Output: s.log.Writer(),
	}))
	router.Use(gin.Recovery())

	router.GET("/runs", s.listRuns)
	router.GET("/runs/:id", s.getRun)
	router.GET("/runs/:id/operations", s.listOperations)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("Report server shutdown error: %v", err)
		}
	}()

	s.log.Infof("Starting report server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("report server: %w", err)
	}
	return nil
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.journal.Runs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.journal.Run(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	results, err := s.journal.Results(run.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if results == nil {
		results = []journal.Result{}
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "results": results})
}

func (s *Server) listOperations(c *gin.Context) {
	if _, err := s.journal.Run(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	ops, err := s.journal.Operations(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ops == nil {
		ops = []waiter.PendingOperation{}
	}
	c.JSON(http.StatusOK, ops)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, journal.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// handleWebSocket processes WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
		log:  s.log,
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.hub)
}
