package app

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// EmailSummary is one inbox entry from the host's Gmail.
type EmailSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
}

type sendEmailReq struct {
	To       string `json:"to" binding:"required,email"`
	Subject  string `json:"subject" binding:"required"`
	Body     string `json:"body" binding:"required"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ListEmailsHandler lists recent primary-inbox messages.
// GET /api/hosts/:id/emails?max=20
func (a *App) ListEmailsHandler(c *gin.Context) {
	hostID := c.Param("id")
	ctx := c.Request.Context()

	gc := &GoogleCalendar{Cfg: a.Cfg, Store: &Store{DB: a.DB}}
	h, err := gc.connectedHost(ctx, hostID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if h == nil {
		c.JSON(http.StatusOK, gin.H{"emails": []EmailSummary{}, "connected": false})
		return
	}

	srv, err := gmail.NewService(ctx, option.WithTokenSource(gc.tokenSource(ctx, h)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create gmail service"})
		return
	}

	max := int64(20)
	if v := c.Query("max"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 && parsed <= 100 {
			max = parsed
		}
	}

	list, err := srv.Users.Messages.List("me").Q("category:primary").MaxResults(max).Context(ctx).Do()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to list messages: %v", err)})
		return
	}

	var emails []EmailSummary
	for _, m := range list.Messages {
		msg, err := srv.Users.Messages.Get("me", m.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).Do()
		if err != nil {
			continue
		}
		e := EmailSummary{ID: msg.Id, ThreadID: msg.ThreadId, Snippet: msg.Snippet}
		if msg.Payload != nil {
			for _, hdr := range msg.Payload.Headers {
				switch hdr.Name {
				case "Subject":
					e.Subject = hdr.Value
				case "From":
					e.From = hdr.Value
				case "Date":
					e.Date = hdr.Value
				}
			}
		}
		emails = append(emails, e)
	}

	c.JSON(http.StatusOK, gin.H{"emails": emails, "count": len(emails), "connected": true})
}

// SendEmailHandler sends a message (optionally into an existing thread) from
// the host's Gmail.
// POST /api/hosts/:id/emails
func (a *App) SendEmailHandler(c *gin.Context) {
	hostID := c.Param("id")
	var req sendEmailReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	gc := &GoogleCalendar{Cfg: a.Cfg, Store: &Store{DB: a.DB}}
	h, err := gc.connectedHost(ctx, hostID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if h == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Google account not connected"})
		return
	}

	srv, err := gmail.NewService(ctx, option.WithTokenSource(gc.tokenSource(ctx, h)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create gmail service"})
		return
	}

	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s",
		req.To, req.Subject, req.Body)
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw)),
		ThreadId: req.ThreadID,
	}

	sent, err := srv.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to send message: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": sent.Id, "thread_id": sent.ThreadId})
}
