package e2e

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authbase/internal/deploy"
	"github.com/nkiryanov/authbase/internal/handlers"
	"github.com/nkiryanov/authbase/internal/logger"
	"github.com/nkiryanov/authbase/internal/repository"
	"github.com/nkiryanov/authbase/internal/repository/postgres"
	"github.com/nkiryanov/authbase/internal/service/auth"
	"github.com/nkiryanov/authbase/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authbase/internal/service/email"
	"github.com/nkiryanov/authbase/internal/service/user"
	"github.com/nkiryanov/authbase/internal/testutil"
)

// Collects sent emails instead of delivering them
type Mailbox struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *Mailbox) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Token from the link of the last sent email
func (m *Mailbox) LastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "email has to be sent")

	_, after, found := strings.Cut(m.sent[len(m.sent)-1].Text, "?token=")
	require.True(t, found, "email has to contain link with token")
	raw, _, _ := strings.Cut(after, "\n")
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return token
}

type Services struct {
	Storage     repository.Storage
	AuthService *auth.AuthService
	Mailbox     *Mailbox
}

// Create db transaction and run server in with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"}, storage)
		require.NoError(t, err, "token manager should be created without errors")

		box := &Mailbox{}
		as, err := auth.NewService(
			tokens,
			user.NewService(user.BcryptHasher{Cost: bcrypt.MinCost}, storage.User()),
			email.NewService(box, "http://localhost:3000"),
			logger.NewNoOpLogger(),
		)
		require.NoError(t, err, "auth service starting error")

		router := handlers.NewRouter(handlers.RouterConfig{Mode: deploy.Test}, as, nil, logger.NewNoOpLogger())

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			Storage:     storage,
			AuthService: as,
			Mailbox:     box,
		})
	})
}
