package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"

	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/authorization"
	authzmocks "github.com/numericalz/practicehub/internal/authorization/mocks"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/notification"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

type fakeUserService struct {
	userdomain.Service
	users map[string]userdomain.User
}

func (f *fakeUserService) GetByID(ctx context.Context, req userdomain.GetUserRequest) (userdomain.User, error) {
	_ = ctx
	u, ok := f.users[req.ID]
	if !ok {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}
	return u, nil
}

type fakeClientService struct {
	clientdomain.Service
	createErr  error
	getErr     error
	client     clientdomain.Client
	lastCreate clientdomain.CreateClientRequest
}

func (f *fakeClientService) Create(ctx context.Context, req clientdomain.CreateClientRequest) (clientdomain.Client, error) {
	_ = ctx
	f.lastCreate = req
	if f.createErr != nil {
		return clientdomain.Client{}, f.createErr
	}
	return f.client, nil
}

func (f *fakeClientService) GetByID(ctx context.Context, req clientdomain.GetClientRequest) (clientdomain.Client, error) {
	_ = ctx
	_ = req
	if f.getErr != nil {
		return clientdomain.Client{}, f.getErr
	}
	return f.client, nil
}

type fakeVATService struct {
	vatdomain.Service
	quarter vatdomain.VATQuarter
}

func (f *fakeVATService) GetByID(ctx context.Context, req vatdomain.GetQuarterRequest) (vatdomain.VATQuarter, error) {
	_ = ctx
	_ = req
	return f.quarter, nil
}

func (f *fakeVATService) AdvanceStage(ctx context.Context, req vatdomain.AdvanceStageRequest) (vatdomain.VATQuarter, error) {
	_ = ctx
	advanced := f.quarter
	advanced.CurrentStage = req.TargetStage
	return advanced, nil
}

type fakeActivityService struct {
	records []activitydomain.RecordRequest
}

func (f *fakeActivityService) Record(ctx context.Context, req activitydomain.RecordRequest) {
	_ = ctx
	f.records = append(f.records, req)
}

func (f *fakeActivityService) List(ctx context.Context, req activitydomain.ListActivityRequest) (activitydomain.ListActivityResponse, error) {
	_ = ctx
	_ = req
	return activitydomain.ListActivityResponse{}, nil
}

type fakeAuthzService struct {
	err error
}

func (f *fakeAuthzService) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	_ = ctx
	_ = actor
	_ = role
	_ = object
	_ = action
	return f.err
}

type captureNotifier struct {
	stageChanges []notification.StageChange
	reminders    []notification.DeadlineReminder
}

func (n *captureNotifier) NotifyStageChange(ctx context.Context, payload notification.StageChange) {
	_ = ctx
	n.stageChanges = append(n.stageChanges, payload)
}

func (n *captureNotifier) NotifyDeadlineReminder(ctx context.Context, payload notification.DeadlineReminder) {
	_ = ctx
	n.reminders = append(n.reminders, payload)
}

func activeUser(id snowflake.ID, role userdomain.Role) userdomain.User {
	return userdomain.User{
		ID:       id,
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Role:     role,
		IsActive: true,
	}
}

func newTestServer(t *testing.T, mutate func(*Server)) (*Server, *fakeActivityService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	activitySvc := &fakeActivityService{}
	srv := &Server{
		engine: gin.New(),
		userSvc: &fakeUserService{users: map[string]userdomain.User{
			"42": activeUser(snowflake.ID(42), userdomain.RolePartner),
		}},
		authzSvc:    &fakeAuthzService{},
		activitySvc: activitySvc,
		notifier:    &captureNotifier{},
	}
	if mutate != nil {
		mutate(srv)
	}

	srv.engine.Use(ErrorHandlingMiddleware())
	srv.registerAPIRoutes()
	return srv, activitySvc
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUser, "42")
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)
	return resp
}

func TestActorRequiredRejectsMissingHeader(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestActorRequiredRejectsInactiveUser(t *testing.T) {
	inactive := activeUser(snowflake.ID(7), userdomain.RoleStaff)
	inactive.IsActive = false

	srv, _ := newTestServer(t, func(s *Server) {
		s.userSvc = &fakeUserService{users: map[string]userdomain.User{
			"7": inactive,
		}}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set(HeaderUser, "7")
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestRequireAuthzPassesActorToPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	authzSvc := authzmocks.NewMockService(ctrl)
	authzSvc.EXPECT().
		Authorize(gomock.Any(), "42", "PARTNER", authorization.ObjectUser, authorization.ActionView).
		Return(nil)

	srv, _ := newTestServer(t, func(s *Server) {
		s.authzSvc = authzSvc
		s.userSvc = &fakeUserService{users: map[string]userdomain.User{
			"42": activeUser(snowflake.ID(42), userdomain.RolePartner),
		}}
	})
	srv.engine.GET("/probe", srv.ActorRequired(), srv.requireAuthz(authorization.ObjectUser, authorization.ActionView), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	resp := doRequest(srv, http.MethodGet, "/probe", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
}

func TestRequireAuthzDenies(t *testing.T) {
	srv, _ := newTestServer(t, func(s *Server) {
		s.authzSvc = &fakeAuthzService{err: authorization.ErrForbidden}
		s.clientSvc = &fakeClientService{}
	})

	resp := doRequest(srv, http.MethodGet, "/api/v1/clients/1", "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestCreateClientHandler(t *testing.T) {
	clientSvc := &fakeClientService{
		client: clientdomain.Client{
			ID:          snowflake.ID(100),
			ClientCode:  "NZ-1",
			CompanyName: "Acme Ltd",
		},
	}
	srv, activitySvc := newTestServer(t, func(s *Server) {
		s.clientSvc = clientSvc
	})

	resp := doRequest(srv, http.MethodPost, "/api/v1/clients", `{"company_name":" Acme Ltd ","company_category":"LIMITED_COMPANY","company_number":"1234567"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if clientSvc.lastCreate.CompanyName != "Acme Ltd" {
		t.Fatalf("expected trimmed company name, got %q", clientSvc.lastCreate.CompanyName)
	}
	if len(activitySvc.records) != 1 || activitySvc.records[0].Action != "client.create" {
		t.Fatalf("expected one client.create activity record, got %+v", activitySvc.records)
	}

	var body struct {
		Data clientdomain.Client `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.ClientCode != "NZ-1" {
		t.Fatalf("expected client code NZ-1, got %q", body.Data.ClientCode)
	}
}

func TestCreateClientValidationErrorMapsToBadRequest(t *testing.T) {
	srv, activitySvc := newTestServer(t, func(s *Server) {
		s.clientSvc = &fakeClientService{createErr: clientdomain.ErrInvalidName}
	})

	resp := doRequest(srv, http.MethodPost, "/api/v1/clients", `{"company_name":""}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if len(activitySvc.records) != 0 {
		t.Fatalf("expected no activity records on failure, got %+v", activitySvc.records)
	}
}

func TestGetClientByIDNotFound(t *testing.T) {
	srv, _ := newTestServer(t, func(s *Server) {
		s.clientSvc = &fakeClientService{getErr: clientdomain.ErrClientNotFound}
	})

	resp := doRequest(srv, http.MethodGet, "/api/v1/clients/999", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestAdvanceVATQuarterStageNotifiesAssignee(t *testing.T) {
	assignee := snowflake.ID(42)
	notifier := &captureNotifier{}
	srv, activitySvc := newTestServer(t, func(s *Server) {
		s.vatSvc = &fakeVATService{quarter: vatdomain.VATQuarter{
			ID:             snowflake.ID(500),
			ClientID:       snowflake.ID(100),
			CurrentStage:   workflow.StagePaperworkPendingChase,
			AssignedUserID: &assignee,
		}}
		s.clientSvc = &fakeClientService{client: clientdomain.Client{
			ID:          snowflake.ID(100),
			CompanyName: "Acme Ltd",
		}}
		s.notifier = notifier
	})

	resp := doRequest(srv, http.MethodPost, "/api/v1/vat-quarters/500/stage", `{"target_stage":"PAPERWORK_CHASED"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if len(notifier.stageChanges) != 1 {
		t.Fatalf("expected one stage-change notification, got %d", len(notifier.stageChanges))
	}
	sent := notifier.stageChanges[0]
	if sent.RecipientEmail != "jane@example.com" || sent.ClientName != "Acme Ltd" {
		t.Fatalf("unexpected notification payload: %+v", sent)
	}

	if len(activitySvc.records) != 1 || activitySvc.records[0].Action != "vat_quarter.stage_advance" {
		t.Fatalf("expected one vat_quarter.stage_advance record, got %+v", activitySvc.records)
	}
}
