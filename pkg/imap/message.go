package imap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// ShouldProcess re-checks a message date against the SINCE day. IMAP SINCE is
// evaluated by the server in its own time zone, so results are confirmed using
// the calendar date from the Date header. Messages without a usable date are kept.
func ShouldProcess(date time.Time, hasDate bool, since *time.Time) bool {
	if since == nil || !hasDate {
		return true
	}
	y, m, d := date.Date()
	msgDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	sy, sm, sd := since.Date()
	sinceDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	return !msgDay.Before(sinceDay)
}

// SaveAttachments parses one RFC 822 message and writes its PDF attachments to
// dir. skipped reports that the message failed the date check.
func SaveAttachments(r io.Reader, dir string, since *time.Time) (saved []string, skipped bool, err error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, false, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	hasDate := mr.Header.Get("Date") != ""
	date, derr := mr.Header.Date()
	if !ShouldProcess(date, hasDate && derr == nil, since) {
		return nil, true, nil
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return saved, false, fmt.Errorf("next part: %w", err)
		}

		name, ok := partFilename(p)
		if !ok || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}

		path := UniquePath(dir, name)
		if err := writeFile(path, p.Body); err != nil {
			return saved, false, err
		}
		saved = append(saved, path)
	}
	return saved, false, nil
}

// partFilename returns the cleaned filename of a part that carries a
// Content-Disposition header.
func partFilename(p *mail.Part) (string, bool) {
	var ah mail.AttachmentHeader
	switch h := p.Header.(type) {
	case *mail.AttachmentHeader:
		ah = *h
	case *mail.InlineHeader:
		ah = mail.AttachmentHeader{Header: h.Header}
	default:
		return "", false
	}
	if ah.Get("Content-Disposition") == "" {
		return "", false
	}

	name, _ := ah.Filename()
	name = CleanFilename(name)
	return name, name != ""
}

// CleanFilename repairs GBK encoded raw names, drops directory components and
// keeps printable runes only.
func CleanFilename(name string) string {
	if name == "" {
		return ""
	}
	if !utf8.ValidString(name) {
		if decoded, err := simplifiedchinese.GBK.NewDecoder().String(name); err == nil {
			name = decoded
		}
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

// UniquePath returns dir/name, or dir/base_N.ext for the first N that is free.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
