package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/backend/internal/ai"
	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/notify"
	"mailroom/backend/internal/photostore"
	"mailroom/backend/internal/scan"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/memory"
)

const testPassword = "password123"

// stubRecognizer 固定返回一个识别结果
type stubRecognizer struct {
	result ai.Result
}

func (s *stubRecognizer) SmartMatch(_ context.Context, _ []byte, _ []domain.Contact) *ai.Result {
	r := s.result
	return &r
}

func (s *stubRecognizer) SmartMatchBatch(_ context.Context, images [][]byte, _ []domain.Contact) []ai.Result {
	results := make([]ai.Result, len(images))
	for i := range results {
		results[i] = s.result
	}
	return results
}

type testEnv struct {
	router *gin.Engine
	store  storage.Store
	ai     *stubRecognizer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := memory.NewStore()
	cfg := &config.Config{
		Mailroom: config.MailroomConfig{
			Timezone:        "UTC",
			DuplicateWindow: 10 * time.Minute,
			NotifyRateLimit: 5,
		},
		Scan: config.ScanConfig{
			SessionTTL:   4 * time.Hour,
			MaxBatchSize: 10,
			AutoAccept:   0.7,
			BatchAccept:  0.5,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		JWT: config.JWTConfig{
			Secret:        "test-secret-key-32-characters-ok",
			Issuer:        "mailroom",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
	}

	photos, err := photostore.NewLocal(t.TempDir(), log)
	require.NoError(t, err)

	recognizer := &stubRecognizer{}
	authService := auth.NewAuthService(store, auth.NewJWTManager(&cfg.JWT), store)
	contactService := service.NewContactService(store, log)
	mailItemService := service.NewMailItemService(store, cfg, log)
	mailLogService := service.NewMailLogService(store, time.UTC, log)
	todoService := service.NewTodoService(store, log)
	oauthService := service.NewGmailOAuthService(store, &cfg.Notify, log)
	notifyService := service.NewNotificationService(
		store, notify.NewMailer(&cfg.Notify, log), oauthService,
		mailItemService, cfg.Mailroom.NotifyRateLimit, log)
	scanService := scan.NewService(store, contactService, recognizer, nil, photos, cfg.Scan, log)

	router := NewRouter(RouterDependencies{
		Config:              cfg,
		AuthService:         authService,
		ContactService:      contactService,
		MailItemService:     mailItemService,
		MailLogService:      mailLogService,
		TodoService:         todoService,
		NotificationService: notifyService,
		OAuthService:        oauthService,
		ScanService:         scanService,
		PhotoStore:          photos,
		Store:               store,
		Logger:              log,
	})

	seedUser(t, store, "u-staff", "staff", domain.RoleStaff)
	seedUser(t, store, "u-manager", "manager", domain.RoleManager)

	return &testEnv{router: router, store: store, ai: recognizer}
}

func seedUser(t *testing.T, store storage.Store, id, username string, role domain.UserRole) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.CreateUser(&domain.User{
		ID:           id,
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func seedContact(t *testing.T, store storage.Store, person, mailbox string) *domain.Contact {
	t.Helper()
	now := time.Now()
	contact := &domain.Contact{
		ID:            "c-" + mailbox,
		ContactPerson: person,
		MailboxNumber: mailbox,
		Email:         person + "@example.com",
		Status:        domain.ContactStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.SaveContact(contact))
	return contact
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/v1/auth/login", "", gin.H{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp authResponse
	decodeData(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doPhoto(t *testing.T, path, token, field string, photos ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, photo := range photos {
		part, err := writer.CreateFormFile(field, fmt.Sprintf("photo-%d.jpg", i))
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

// jpegBytes 一段带 JPEG 魔数的假照片数据
func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("fake photo data")...)
}

func TestRouter_Auth(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("登录成功返回令牌", func(t *testing.T) {
		token := env.login(t, "staff")
		assert.NotEmpty(t, token)
	})

	t.Run("密码错误返回 401", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/auth/login", "", gin.H{
			"username": "staff", "password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("未认证访问受保护路由返回 401", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/contacts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me 返回当前用户", func(t *testing.T) {
		token := env.login(t, "manager")
		rec := env.doJSON(t, http.MethodGet, "/v1/auth/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var user userResponse
		decodeData(t, rec, &user)
		assert.Equal(t, "manager", user.Username)
		assert.Equal(t, string(domain.RoleManager), user.Role)
	})

	t.Run("登出后令牌失效", func(t *testing.T) {
		token := env.login(t, "staff")
		rec := env.doJSON(t, http.MethodPost, "/v1/auth/logout", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.doJSON(t, http.MethodGet, "/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_StaffManagement(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("经理可以开设账号", func(t *testing.T) {
		token := env.login(t, "manager")
		rec := env.doJSON(t, http.MethodPost, "/v1/staff", token, gin.H{
			"username": "newhire",
			"email":    "newhire@example.com",
			"password": "password456",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp authResponse
		decodeData(t, rec, &resp)
		assert.Equal(t, string(domain.RoleStaff), resp.User.Role)
	})

	t.Run("前台员工无权开设账号", func(t *testing.T) {
		token := env.login(t, "staff")
		rec := env.doJSON(t, http.MethodPost, "/v1/staff", token, gin.H{
			"username": "another",
			"email":    "another@example.com",
			"password": "password456",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_ContactCRUD(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")

	var created domain.Contact

	t.Run("创建联系人", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/contacts", token, gin.H{
			"contactPerson": "Jane Smith",
			"mailboxNumber": "101",
			"email":         "jane@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeData(t, rec, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "101", created.MailboxNumber)
	})

	t.Run("信箱号冲突返回 409", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/contacts", token, gin.H{
			"contactPerson": "Someone Else",
			"mailboxNumber": "101",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("缺少姓名返回 400", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/contacts", token, gin.H{
			"mailboxNumber": "102",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("搜索联系人", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/contacts?q=jane", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list contactListResponse
		decodeData(t, rec, &list)
		require.Equal(t, 1, list.Count)
		assert.Equal(t, "Jane Smith", list.Items[0].ContactPerson)
	})

	t.Run("归档后默认列表不再返回", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/contacts/"+created.ID+"/archive", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.doJSON(t, http.MethodGet, "/v1/contacts", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list contactListResponse
		decodeData(t, rec, &list)
		assert.Zero(t, list.Count)

		rec = env.doJSON(t, http.MethodGet, "/v1/contacts?includeArchived=true", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeData(t, rec, &list)
		assert.Equal(t, 1, list.Count)
	})

	t.Run("删除联系人需要经理权限", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodDelete, "/v1/contacts/"+created.ID, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		managerToken := env.login(t, "manager")
		rec = env.doJSON(t, http.MethodDelete, "/v1/contacts/"+created.ID, managerToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRouter_MailItems(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")
	contact := seedContact(t, env.store, "Robert Johnson", "205")

	var logged domain.MailItem

	t.Run("登记邮件", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/mail-items", token, gin.H{
			"contactId": contact.ID,
			"type":      "letter",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeData(t, rec, &logged)
		assert.Equal(t, domain.MailStatusReceived, logged.Status)
		assert.Equal(t, "staff", logged.LoggedBy)
		assert.Equal(t, 1, logged.Quantity)
	})

	t.Run("短时间重复登记返回 409", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/mail-items", token, gin.H{
			"contactId": contact.ID,
			"type":      "letter",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("携带 force 可以强制登记", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/mail-items", token, gin.H{
			"contactId": contact.ID,
			"type":      "letter",
			"force":     true,
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("按联系人过滤列表", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/mail-items?contactId="+contact.ID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list mailItemListResponse
		decodeData(t, rec, &list)
		assert.Equal(t, 2, list.Total)
	})

	t.Run("状态流转到已取件", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPatch, "/v1/mail-items/"+logged.ID+"/status", token, gin.H{
			"status": "picked_up",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated domain.MailItem
		decodeData(t, rec, &updated)
		assert.Equal(t, domain.MailStatusPickedUp, updated.Status)
	})

	t.Run("非法状态返回 400", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPatch, "/v1/mail-items/"+logged.ID+"/status", token, gin.H{
			"status": "teleported",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("历史记录包含登记和状态变更", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/mail-items/"+logged.ID+"/history", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var history historyListResponse
		decodeData(t, rec, &history)
		assert.GreaterOrEqual(t, history.Count, 2)
	})

	t.Run("不存在的邮件返回 404", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/mail-items/no-such-id", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_MailLog(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")
	contact := seedContact(t, env.store, "Jane Smith", "101")

	for i := 0; i < 2; i++ {
		rec := env.doJSON(t, http.MethodPost, "/v1/mail-items", token, gin.H{
			"contactId": contact.ID,
			"type":      "letter",
			"force":     true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.doJSON(t, http.MethodGet, "/v1/mail-log", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mailLogResponse
	decodeData(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Groups[0].Quantity)
	assert.Equal(t, "Jane Smith", resp.Groups[0].ContactName)
}

func TestRouter_Todos(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")

	t.Run("缺少标题返回 400", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/todos", token, gin.H{"notes": "无标题"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var created domain.Todo

	t.Run("创建并完成待办", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/todos", token, gin.H{
			"title":  "给 205 信箱贴催取通知",
			"bucket": "today",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeData(t, rec, &created)
		assert.Equal(t, "staff", created.CreatedBy)

		rec = env.doJSON(t, http.MethodPatch, "/v1/todos/"+created.ID+"/complete", token, gin.H{
			"completed": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var done domain.Todo
		decodeData(t, rec, &done)
		assert.True(t, done.Completed)
		assert.Equal(t, "staff", done.CompletedBy)
	})

	t.Run("默认列表隐藏已完成项", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/todos", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list todoListResponse
		decodeData(t, rec, &list)
		assert.Zero(t, list.Count)

		rec = env.doJSON(t, http.MethodGet, "/v1/todos?includeCompleted=true", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeData(t, rec, &list)
		assert.Equal(t, 1, list.Count)
	})
}

func TestRouter_Notify(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")
	contact := seedContact(t, env.store, "Jane Smith", "101")

	rec := env.doJSON(t, http.MethodPost, "/v1/mail-items", token, gin.H{
		"contactId": contact.ID,
		"type":      "package",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Gmail 未配置时通知不可用
	rec = env.doJSON(t, http.MethodPost, "/v1/contacts/"+contact.ID+"/notify", token, gin.H{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_ScanFlow(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "staff")
	contact := seedContact(t, env.store, "Jane Smith", "101")

	env.ai.result = ai.Result{
		ExtractedText: "Jane Smith",
		ContactID:     contact.ID,
		Confidence:    0.92,
		ItemType:      "letter",
	}

	t.Run("没有会话时扫描返回 404", func(t *testing.T) {
		rec := env.doPhoto(t, "/v1/scan/capture", token, "photo", jpegBytes())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("开始会话", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/scan/session", token, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("拒绝非图片上传", func(t *testing.T) {
		rec := env.doPhoto(t, "/v1/scan/capture", token, "photo", []byte("not an image"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("高置信度识别自动匹配", func(t *testing.T) {
		rec := env.doPhoto(t, "/v1/scan/capture", token, "photo", jpegBytes())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var item domain.ScannedItem
		decodeData(t, rec, &item)
		assert.Equal(t, domain.ScanItemMatched, item.Status)
		assert.Equal(t, contact.ID, item.ContactID)
		assert.NotEmpty(t, item.PhotoKey)
	})

	t.Run("批量扫描", func(t *testing.T) {
		rec := env.doPhoto(t, "/v1/scan/capture/batch", token, "photos", jpegBytes(), jpegBytes())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Items []domain.ScannedItem `json:"items"`
		}
		decodeData(t, rec, &resp)
		assert.Len(t, resp.Items, 2)
	})

	t.Run("汇总按联系人合并", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/scan/summary", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp scanSummaryResponse
		decodeData(t, rec, &resp)
		require.Len(t, resp.Groups, 1)
		assert.Equal(t, 3, resp.Groups[0].Letters)
	})

	t.Run("提交批次写入邮件日志", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/v1/scan/submit", token, gin.H{
			"skipNotification": true,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result scan.SubmitResult
		decodeData(t, rec, &result)
		assert.Equal(t, 3, result.ItemsCreated)
		assert.Zero(t, result.Skipped)

		list := env.doJSON(t, http.MethodGet, "/v1/mail-items?contactId="+contact.ID, token, nil)
		require.Equal(t, http.StatusOK, list.Code)
		var items mailItemListResponse
		decodeData(t, list, &items)
		assert.Equal(t, 3, items.Total)
	})

	t.Run("提交后会话结束", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/v1/scan/session", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_Statistics(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("前台员工无权查看", func(t *testing.T) {
		token := env.login(t, "staff")
		rec := env.doJSON(t, http.MethodGet, "/v1/statistics", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("经理可以查看", func(t *testing.T) {
		seedContact(t, env.store, "Jane Smith", "101")
		token := env.login(t, "manager")
		rec := env.doJSON(t, http.MethodGet, "/v1/statistics", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats domain.MailroomStatistics
		decodeData(t, rec, &stats)
		assert.Equal(t, 1, stats.TotalContacts)
	})
}
