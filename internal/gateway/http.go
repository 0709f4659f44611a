package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arjun/scribe/internal/agent"
	"github.com/arjun/scribe/internal/content"
	"github.com/arjun/scribe/internal/export"
	"github.com/arjun/scribe/internal/governance"
	"github.com/arjun/scribe/internal/observability"
	"github.com/arjun/scribe/internal/store"
)

// Server is the browser-facing gateway: REST for intake, workflow control,
// and exports; WebSocket for the live event stream.
type Server struct {
	sessions   *SessionManager
	normalizer *content.Normalizer
	policy     governance.PolicyEngine
	logger     *observability.Logger
	runlog     *store.RunLog

	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	startTime  time.Time
}

type ServerConfig struct {
	Host       string
	Port       int
	EnableCORS bool
}

func NewServer(cfg ServerConfig, sessions *SessionManager, normalizer *content.Normalizer, policy governance.PolicyEngine, logger *observability.Logger, runlog *store.RunLog) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		sessions:   sessions,
		normalizer: normalizer,
		policy:     policy,
		logger:     logger,
		runlog:     runlog,
		engine:     engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     engine,
		ReadTimeout: 30 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.POST("/sessions", s.handleCreateSession)

	sessions := api.Group("/sessions/:id")
	{
		sessions.GET("", s.handleGetSession)
		sessions.DELETE("", s.handleDeleteSession)
		sessions.POST("/files", s.handleUploadFiles)
		sessions.GET("/files", s.handleListFiles)
		sessions.DELETE("/files/:fileID", s.handleRemoveFile)
		sessions.POST("/workflow", s.handleStartWorkflow)
		sessions.POST("/reset", s.handleReset)
		sessions.GET("/stream", s.handleStream)
		sessions.GET("/log", s.handleLog)
		sessions.GET("/steps/:stepID/export/code", s.handleExportCode)
		sessions.GET("/steps/:stepID/export/report", s.handleExportReport)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	log.Printf("Gateway listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	c.JSON(http.StatusOK, gin.H{"deleted": sess.ID})
}

type rejectedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// handleUploadFiles accepts a multipart batch. Each file is screened by
// the intake policy and normalized; one bad file never blocks the rest.
func (s *Server) handleUploadFiles(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in request"})
		return
	}

	var uploads []content.Upload
	var rejected []rejectedFile

	for _, part := range parts {
		mediaType := part.Header.Get("Content-Type")

		verdict := s.policy.Evaluate(governance.Request{
			Filename:  part.Filename,
			MediaType: mediaType,
			Size:      part.Size,
		})
		if verdict.Effect == governance.EffectDeny {
			rejected = append(rejected, rejectedFile{Name: part.Filename, Error: verdict.Reason})
			s.logger.LogIntake(sess.ID, part.Filename, "", part.Size, true, verdict.Reason)
			continue
		}

		f, err := part.Open()
		if err != nil {
			rejected = append(rejected, rejectedFile{Name: part.Filename, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			rejected = append(rejected, rejectedFile{Name: part.Filename, Error: err.Error()})
			continue
		}

		uploads = append(uploads, content.Upload{Name: part.Filename, MediaType: mediaType, Data: data})
	}

	var accepted []*content.File
	for _, res := range s.normalizer.NormalizeAll(uploads) {
		if res.Err != nil {
			rejected = append(rejected, rejectedFile{Name: res.Name, Error: res.Err.Error()})
			s.logger.LogIntake(sess.ID, res.Name, "", 0, true, res.Err.Error())
			continue
		}
		accepted = append(accepted, res.File)
		s.logger.LogIntake(sess.ID, res.File.Name, string(res.File.Category), res.File.Size, false, "")
	}

	if len(accepted) > 0 {
		if err := sess.Engine.AddFiles(accepted...); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"rejected": rejected,
	})
}

func (s *Server) handleListFiles(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": sess.Engine.Snapshot().Files})
}

func (s *Server) handleRemoveFile(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if !sess.Engine.RemoveFile(c.Param("fileID")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found or workflow in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": c.Param("fileID")})
}

// handleStartWorkflow kicks off plan generation and execution. The run
// continues server-side after this request returns; progress arrives over
// the session's event stream.
func (s *Server) handleStartWorkflow(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	snap := sess.Engine.Snapshot()
	if snap.Planning || snap.Executing {
		c.JSON(http.StatusConflict, gin.H{"error": agent.ErrBusy.Error()})
		return
	}
	if len(snap.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": agent.ErrNoFiles.Error()})
		return
	}

	go func() {
		// Detached from the request: there is no cancellation primitive
		// for an in-flight run, only reset between steps.
		if err := sess.Engine.CreateWorkflow(context.Background()); err != nil {
			log.Printf("workflow for session %s failed: %v", sess.ID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "planning"})
}

func (s *Server) handleReset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.Engine.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "idle"})
}

func (s *Server) handleStream(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	sess.Hub.Add(conn)
}

func (s *Server) handleLog(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if s.runlog == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []store.LogEntry{}})
		return
	}
	entries, err := s.runlog.Recent(sess.ID, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) exportStep(c *gin.Context) (*Session, agent.WorkflowStep, bool) {
	sess, ok := s.session(c)
	if !ok {
		return nil, agent.WorkflowStep{}, false
	}
	step, ok := sess.Engine.Step(c.Param("stepID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "step not found"})
		return nil, agent.WorkflowStep{}, false
	}
	if !step.Status.Terminal() || step.Content == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "step has no exportable content yet"})
		return nil, agent.WorkflowStep{}, false
	}
	return sess, step, true
}

func (s *Server) handleExportCode(c *gin.Context) {
	sess, step, ok := s.exportStep(c)
	if !ok {
		return
	}
	block, found := export.DetectCodeBlock(step.Content)
	if !found {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no code block in step output"})
		return
	}
	artifact := export.BuildCodeArtifact(block)
	s.logger.LogExport(sess.ID, step.ID, "code", artifact.Filename)
	if s.runlog != nil {
		_ = s.runlog.Append(sess.ID, "export_code", step.ID, artifact.Filename)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", artifact.Body)
}

func (s *Server) handleExportReport(c *gin.Context) {
	sess, step, ok := s.exportStep(c)
	if !ok {
		return
	}
	artifact, err := export.BuildReportArtifact(step.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.LogExport(sess.ID, step.ID, "report", artifact.Filename)
	if s.runlog != nil {
		_ = s.runlog.Append(sess.ID, "export_report", step.ID, artifact.Filename)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", artifact.Body)
}
