package api

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/models"
	"github.com/picmigrate/picmigrate/internal/oauth"
)

// handleIndex serves a minimal operator page: per-account connection status
// with authorize links where a login is still needed.
func (s *Server) handleIndex(c *gin.Context) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>picmigrate</title></head><body>\n")
	b.WriteString("<h1>picmigrate</h1>\n<ul>\n")
	for _, acc := range s.authorizer.Accounts() {
		state := s.authorizer.Status(acc.Name)
		fmt.Fprintf(&b, "<li>%s (%s): %s", html.EscapeString(acc.Name), acc.Role, state)
		if state != oauth.StateAuthenticated {
			fmt.Fprintf(&b, ` — <a href="/oauth/authorize/%s">authorize</a>`, html.EscapeString(acc.Name))
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
	b.WriteString(`<p><a href="/status">status</a> · <a href="/migrations/latest">latest batch</a> · <a href="/log">log</a></p>` + "\n")
	b.WriteString("</body></html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// handleAuthorizeRedirect sends the operator's browser to Bling's consent
// screen for the named account.
func (s *Server) handleAuthorizeRedirect(c *gin.Context) {
	account := c.Param("account")

	url, err := s.authorizer.AuthorizationURL(account)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// handleOAuthCallback receives the provider redirect. The state value alone
// identifies which account the code belongs to, so both accounts can share
// one redirect URI.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}
	if state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state parameter"})
		return
	}

	acc, ok := s.authorizer.AccountForState(state)
	if !ok {
		s.logger.WarnWithContext(c.Request.Context(), "callback with unknown state", "state", state)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized state parameter"})
		return
	}

	_, err := s.authorizer.Exchange(c.Request.Context(), acc, code, state)
	if err != nil {
		var mismatch *errors.ErrStateMismatch
		if goerrors.As(err, &mismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var exchange *errors.ErrExchangeFailed
		if goerrors.As(err, &exchange) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           err.Error(),
				"provider_status": exchange.Status,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": acc.Name,
		"status":  "authenticated",
	})
}

// handleStatus reports the authorization state of every configured account.
func (s *Server) handleStatus(c *gin.Context) {
	accounts := gin.H{}
	for _, acc := range s.authorizer.Accounts() {
		accounts[acc.Name] = gin.H{
			"role":  acc.Role,
			"state": s.authorizer.Status(acc.Name),
		}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

type batchRequest struct {
	SKUs []string `json:"skus"`
}

// handleRunBatch runs a migration batch synchronously. The body is either a
// JSON object with a "skus" array or a plain newline-separated SKU list.
func (s *Server) handleRunBatch(c *gin.Context) {
	skus, err := parseSKUs(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(skus) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no SKUs provided"})
		return
	}

	if !s.batchMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a migration batch is already running"})
		return
	}
	defer s.batchMu.Unlock()

	ctx := c.Request.Context()

	originToken, err := s.authorizer.CurrentToken(ctx, s.orchestrator.OriginName())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "origin account not authenticated: " + err.Error()})
		return
	}
	destToken, err := s.authorizer.CurrentToken(ctx, s.orchestrator.DestinationName())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "destination account not authenticated: " + err.Error()})
		return
	}

	batch, runErr := s.orchestrator.RunBatch(ctx, skus, originToken, destToken, nil)
	if runErr != nil && batch == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": runErr.Error()})
		return
	}

	status := http.StatusOK
	if runErr != nil {
		// Cancelled mid-batch; partial results are still useful.
		status = http.StatusAccepted
	}
	c.JSON(status, batch)
}

func parseSKUs(c *gin.Context) ([]string, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		return nil, &errors.ErrFileRead{Path: "request body", Err: err}
	}

	var skus []string
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var req batchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		skus = req.SKUs
	} else {
		skus = strings.Split(trimmed, "\n")
	}

	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		if sku = strings.TrimSpace(sku); sku != "" {
			out = append(out, sku)
		}
	}
	return out, nil
}

// handleListBatches returns recent batch summaries, newest first.
func (s *Server) handleListBatches(c *gin.Context) {
	summaries, err := s.history.ListBatches(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": summaries})
}

// handleGetBatch returns a full batch result. The id "latest" resolves to
// the most recently finished batch.
func (s *Server) handleGetBatch(c *gin.Context) {
	id := c.Param("id")

	var batch *models.BatchResult
	var err error
	if id == "latest" {
		batch, err = s.history.LatestBatch()
	} else {
		batch, err = s.history.GetBatch(id)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if batch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// handleReset removes every stored credential, forcing both accounts back
// through the consent flow.
func (s *Server) handleReset(c *gin.Context) {
	if err := s.tokens.ClearAll(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.InfoWithContext(c.Request.Context(), "credentials cleared")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// handleLog serves the migration log as plain text.
func (s *Server) handleLog(c *gin.Context) {
	content, err := s.journal.Read()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}
