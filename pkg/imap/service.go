package imap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"invoice-backend/pkg/logger"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

var (
	ErrConnect = errors.New("imap connect failed")
	ErrLogin   = errors.New("imap login failed")
)

const DefaultSubject = "发票"

// Credentials identify one mailbox.
type Credentials struct {
	Server   string
	Port     int
	Username string
	Password string
}

func (c Credentials) Addr() string {
	port := c.Port
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(c.Server, strconv.Itoa(port))
}

type FetchOptions struct {
	// Subject is matched with IMAP SUBJECT (substring, server side).
	Subject string
	// Since limits the search to messages on or after this day. Nil means all mail.
	Since       *time.Time
	DownloadDir string
}

type FetchResult struct {
	Matched    int      // messages returned by SEARCH
	Skipped    int      // messages rejected by the client-side date check
	Downloaded int      // PDF files written
	Files      []string // paths of the written files
}

// IMAPService downloads invoice attachments from a mailbox.
type IMAPService struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewService(timeout time.Duration) *IMAPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IMAPService{timeout: timeout, log: logger.Named("imap")}
}

func (s *IMAPService) connect(ctx context.Context, creds Credentials) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: s.timeout}
	c, err := client.DialWithDialerTLS(dialer, creds.Addr(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, creds.Addr(), err)
	}
	c.Timeout = s.timeout

	if err := c.Login(creds.Username, creds.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: %v", ErrLogin, err)
	}
	return c, nil
}

// Verify logs in and out, used to check credentials when an account is saved.
func (s *IMAPService) Verify(ctx context.Context, creds Credentials) error {
	c, err := s.connect(ctx, creds)
	if err != nil {
		return err
	}
	return c.Logout()
}

// FetchInvoiceAttachments searches INBOX for messages whose subject contains
// opts.Subject and saves their PDF attachments into opts.DownloadDir, which is
// emptied first.
func (s *IMAPService) FetchInvoiceAttachments(ctx context.Context, creds Credentials, opts FetchOptions) (*FetchResult, error) {
	c, err := s.connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	// unblock pending reads when the job is cancelled
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("select INBOX: %w", err)
	}

	if err := resetDir(opts.DownloadDir); err != nil {
		return nil, err
	}

	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	criteria := goimap.NewSearchCriteria()
	criteria.Header.Add("Subject", subject)
	if opts.Since != nil {
		criteria.Since = *opts.Since
	}

	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &FetchResult{Matched: len(ids)}
	s.log.Info("search finished", zap.String("mailbox", creds.Username), zap.Int("matched", len(ids)))
	if len(ids) == 0 {
		return result, nil
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(ids...)
	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{section.FetchItem()}

	messages := make(chan *goimap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		saved, skipped, err := SaveAttachments(body, opts.DownloadDir, opts.Since)
		if err != nil {
			s.log.Warn("message parse failed", zap.Uint32("seq", msg.SeqNum), zap.Error(err))
		}
		if skipped {
			result.Skipped++
			continue
		}
		result.Files = append(result.Files, saved...)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("fetch: %w", err)
	}

	result.Downloaded = len(result.Files)
	s.log.Info("attachments downloaded",
		zap.Int("downloaded", result.Downloaded),
		zap.Int("skipped_by_date", result.Skipped),
	)
	return result, nil
}

func resetDir(dir string) error {
	if dir == "" {
		return errors.New("download dir is empty")
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}
