package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"gavel/api/internal/accounts"
	"gavel/api/internal/auth"
	"gavel/api/internal/config"
	"gavel/api/internal/evidence"
	"gavel/api/internal/export"
	"gavel/api/internal/judge"
	"gavel/api/internal/notify"
	"gavel/api/internal/search"
	"gavel/api/internal/store"
	"gavel/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// maxArguments is the total number of arguments a case may hold across
// both sides.
const maxArguments = 5

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	CreateCase(context.Context, store.Case) error
	GetCase(context.Context, string) (store.Case, error)
	ListRecentCases(context.Context, string, int) ([]store.CaseSummary, error)
	AppendArgument(ctx context.Context, caseID, side, body string, max int) (int, error)
	AppendDocuments(ctx context.Context, caseID, side string, refs []string) error
	AppendDecision(ctx context.Context, caseID, verdict, reasoning string) (store.Decision, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *accounts.Service
	evidence evidence.ObjectStore
	judge    *judge.Engine
	notifier notify.Notifier
	search   *search.Service
	export   *export.Service

	caseMu    sync.Mutex
	caseLocks map[string]*sync.Mutex
}

// New wires a Service that keeps refresh sessions in Postgres.
func New(cfg config.Config, dataStore *store.PostgresStore, objects evidence.ObjectStore, engine *judge.Engine, notifier notify.Notifier, searchService *search.Service) *Service {
	return NewWithSessionStore(cfg, dataStore, dataStore, objects, engine, notifier, searchService)
}

// NewWithSessionStore wires a Service with an explicit refresh-session
// backend (Redis in production when REDIS_URL is set).
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, objects evidence.ObjectStore, engine *judge.Engine, notifier notify.Notifier, searchService *search.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		accounts:  accounts.NewService(dataStore),
		evidence:  objects,
		judge:     engine,
		notifier:  notifier,
		search:    searchService,
		export:    export.NewService(dataStore),
		caseLocks: make(map[string]*sync.Mutex),
	}
}

// lockCase serializes mutations of a single case. Store transactions hold
// a row lock too; this keeps the service correct against any backend.
func (s *Service) lockCase(caseID string) func() {
	s.caseMu.Lock()
	mu, ok := s.caseLocks[caseID]
	if !ok {
		mu = &sync.Mutex{}
		s.caseLocks[caseID] = mu
	}
	s.caseMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Accounts and sessions

func (s *Service) Register(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.accounts.Register(ctx, accounts.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrEmailExists) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session backend may only carry the user id; refresh the rest.
	user, err = s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Cases

func (s *Service) CreateCase(ctx context.Context, session Session) (string, error) {
	caseID := util.NewCaseID()
	record := store.Case{
		CaseID:  caseID,
		OwnerID: session.UserID,
		Status:  "active",
	}
	if err := s.store.CreateCase(ctx, record); err != nil {
		return "", err
	}
	return caseID, nil
}

func (s *Service) GetCase(ctx context.Context, session Session, caseID string) (store.Case, error) {
	record, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return store.Case{}, err
	}
	if s.cfg.RestrictCaseAccess && record.OwnerID != session.UserID {
		// Hide existence from non-owners.
		return store.Case{}, sql.ErrNoRows
	}
	return record, nil
}

func (s *Service) ListCases(ctx context.Context, session Session) ([]store.CaseSummary, error) {
	ownerID := ""
	if s.cfg.RestrictCaseAccess {
		ownerID = session.UserID
	}
	summaries, err := s.store.ListRecentCases(ctx, ownerID, 50)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []store.CaseSummary{}
	}
	return summaries, nil
}

// ArgumentResult reports the case's argument tally after a submission.
type ArgumentResult struct {
	Side      string `json:"side"`
	Count     int    `json:"argumentCount"`
	Remaining int    `json:"remainingArguments"`
}

func (s *Service) SubmitArgument(ctx context.Context, session Session, caseID, side, text string) (ArgumentResult, error) {
	if !store.ValidSide(side) {
		return ArgumentResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "side must be sideA or sideB", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ArgumentResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "argument text is required", nil)
	}
	if _, err := s.GetCase(ctx, session, caseID); err != nil {
		return ArgumentResult{}, err
	}

	unlock := s.lockCase(caseID)
	defer unlock()

	count, err := s.store.AppendArgument(ctx, caseID, side, text, maxArguments)
	if err != nil {
		return ArgumentResult{}, err
	}

	if err := s.notifier.Publish(ctx, caseID, notify.EventNewArgument, notify.NewArgumentPayload{
		Side:     side,
		Argument: text,
		Count:    count,
	}); err != nil {
		log.Printf("notify newArgument %s: %v", caseID, err)
	}
	if s.search != nil {
		s.search.IndexArgument(search.ArgumentRecord{
			ID:        util.NewID("arg"),
			CaseID:    caseID,
			Side:      side,
			Text:      text,
			CreatedAt: time.Now(),
		})
	}

	return ArgumentResult{Side: side, Count: count, Remaining: maxArguments - count}, nil
}

// UploadFile is one incoming evidence file.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

func (s *Service) UploadEvidence(ctx context.Context, session Session, caseID, side string, files []UploadFile) ([]string, error) {
	if !store.ValidSide(side) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "side must be sideA or sideB", nil)
	}
	if len(files) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one file is required", nil)
	}
	if _, err := s.GetCase(ctx, session, caseID); err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := s.evidence.Put(ctx, caseID, side, f.Name, f.Content, f.Size, f.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store evidence: %w", err)
		}
		refs = append(refs, ref)
	}

	unlock := s.lockCase(caseID)
	defer unlock()

	if err := s.store.AppendDocuments(ctx, caseID, side, refs); err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, caseID, notify.EventDocumentUploaded, notify.DocumentUploadedPayload{
		Side:  side,
		Files: refs,
	}); err != nil {
		log.Printf("notify documentUploaded %s: %v", caseID, err)
	}

	return refs, nil
}

func (s *Service) RequestJudgment(ctx context.Context, session Session, caseID string) (store.Decision, error) {
	if s.judge == nil {
		return store.Decision{}, domainError(http.StatusServiceUnavailable, "JUDGE_UNAVAILABLE", "Judgment service not configured", nil)
	}

	unlock := s.lockCase(caseID)
	defer unlock()

	record, err := s.GetCase(ctx, session, caseID)
	if err != nil {
		return store.Decision{}, err
	}

	if s.cfg.RequireEvidence && len(record.SideA.Documents)+len(record.SideB.Documents) == 0 {
		return store.Decision{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one evidence document is required before judgment", nil)
	}

	outcome, err := s.judge.Decide(ctx, judgeInput(record))
	if err != nil {
		return store.Decision{}, domainError(http.StatusBadGateway, "EXTERNAL_SERVICE_FAILURE", "Judgment service failed", nil)
	}

	decision, err := s.store.AppendDecision(ctx, caseID, outcome.Verdict, outcome.Reasoning)
	if err != nil {
		return store.Decision{}, err
	}

	if err := s.notifier.Publish(ctx, caseID, notify.EventAIDecision, notify.AIDecisionPayload{
		Round:     decision.Round,
		Verdict:   decision.Verdict,
		Reasoning: decision.Reasoning,
		CreatedAt: decision.CreatedAt,
	}); err != nil {
		log.Printf("notify aiDecision %s: %v", caseID, err)
	}
	if s.search != nil {
		s.search.IndexDecision(search.DecisionRecord{
			ID:        util.NewID("dec"),
			CaseID:    caseID,
			Round:     decision.Round,
			Verdict:   decision.Verdict,
			Reasoning: decision.Reasoning,
			CreatedAt: decision.CreatedAt,
		})
	}

	return decision, nil
}

func judgeInput(record store.Case) judge.CaseInput {
	input := judge.CaseInput{
		SideADocuments: len(record.SideA.Documents),
		SideBDocuments: len(record.SideB.Documents),
	}
	for _, a := range record.SideA.Arguments {
		input.SideAArguments = append(input.SideAArguments, a.Body)
	}
	for _, a := range record.SideB.Arguments {
		input.SideBArguments = append(input.SideBArguments, a.Body)
	}
	return input
}

func (s *Service) Search(ctx context.Context, q string, limit int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	return s.search.Search(ctx, search.Query{Text: q, Limit: limit}), nil
}

func (s *Service) ExportCase(ctx context.Context, session Session, caseID string) (*export.Result, error) {
	if _, err := s.GetCase(ctx, session, caseID); err != nil {
		return nil, err
	}
	return s.export.Export(ctx, caseID)
}

func (s *Service) SubscribeCase(ctx context.Context, session Session, caseID string) (<-chan notify.Envelope, func(), error) {
	if _, err := s.GetCase(ctx, session, caseID); err != nil {
		return nil, nil, err
	}
	return s.notifier.Subscribe(ctx, caseID)
}
