package imap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawMessage(date string, parts ...string) string {
	var b strings.Builder
	b.WriteString("From: billing@example.com\r\n")
	b.WriteString("To: me@example.com\r\n")
	b.WriteString("Subject: =?UTF-8?B?5Y+R56Wo?=\r\n")
	if date != "" {
		b.WriteString("Date: " + date + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=BOUNDARY\r\n\r\n")
	b.WriteString("--BOUNDARY\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nplease find attached\r\n")
	for _, p := range parts {
		b.WriteString("--BOUNDARY\r\n")
		b.WriteString(p)
	}
	b.WriteString("--BOUNDARY--\r\n")
	return b.String()
}

func attachment(header string) string {
	return "Content-Type: application/pdf\r\n" + header + "\r\n\r\n%PDF-1.4 test\r\n"
}

func since(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return &d
}

func TestShouldProcess(t *testing.T) {
	t.Parallel()
	cutoff := since(t, "2024-03-10")
	cst := time.FixedZone("CST", 8*3600)

	tests := []struct {
		name    string
		date    time.Time
		hasDate bool
		since   *time.Time
		want    bool
	}{
		{"no since", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true, nil, true},
		{"undated message", time.Time{}, false, cutoff, true},
		{"before", time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), true, cutoff, false},
		{"same day", time.Date(2024, 3, 10, 0, 5, 0, 0, cst), true, cutoff, true},
		{"after", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), true, cutoff, true},
	}
	for _, tt := range tests {
		if got := ShouldProcess(tt.date, tt.hasDate, tt.since); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSaveAttachmentsKeepsOnlyPDFs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	msg := rawMessage("Mon, 11 Mar 2024 10:00:00 +0800",
		attachment(`Content-Disposition: attachment; filename="invoice.PDF"`),
		attachment(`Content-Disposition: attachment; filename="photo.jpg"`),
		attachment(`Content-Disposition: attachment; filename="=?UTF-8?B?5Y+R56Wo?=.pdf"`),
	)

	saved, skipped, err := SaveAttachments(strings.NewReader(msg), dir, since(t, "2024-03-10"))
	require.NoError(t, err)
	assert.False(t, skipped)
	require.Len(t, saved, 2)
	assert.Equal(t, filepath.Join(dir, "invoice.PDF"), saved[0])
	assert.Equal(t, filepath.Join(dir, "发票.pdf"), saved[1])

	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF-1.4")
}

func TestSaveAttachmentsSkipsOldMessage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	msg := rawMessage("Fri, 01 Mar 2024 10:00:00 +0800",
		attachment(`Content-Disposition: attachment; filename="old.pdf"`),
	)

	saved, skipped, err := SaveAttachments(strings.NewReader(msg), dir, since(t, "2024-03-10"))
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Empty(t, saved)
}

func TestSaveAttachmentsUndatedIsProcessed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	msg := rawMessage("", attachment(`Content-Disposition: attachment; filename="a.pdf"`))

	saved, skipped, err := SaveAttachments(strings.NewReader(msg), dir, since(t, "2024-03-10"))
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Len(t, saved, 1)
}

func TestSaveAttachmentsCollisionSuffix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	msg := rawMessage("Mon, 11 Mar 2024 10:00:00 +0800",
		attachment(`Content-Disposition: attachment; filename="same.pdf"`),
		attachment(`Content-Disposition: attachment; filename="same.pdf"`),
		attachment(`Content-Disposition: inline; filename="same.pdf"`),
	)

	saved, _, err := SaveAttachments(strings.NewReader(msg), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "same.pdf"),
		filepath.Join(dir, "same_1.pdf"),
		filepath.Join(dir, "same_2.pdf"),
	}, saved)
}

func TestSaveAttachmentsIgnoresPartsWithoutDisposition(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	msg := rawMessage("Mon, 11 Mar 2024 10:00:00 +0800",
		"Content-Type: application/pdf; name=\"nodisp.pdf\"\r\n\r\n%PDF-1.4\r\n",
	)

	saved, _, err := SaveAttachments(strings.NewReader(msg), dir, nil)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestCleanFilename(t *testing.T) {
	t.Parallel()

	gbk := string([]byte{0xb7, 0xa2, 0xc6, 0xb1}) + ".pdf" // "发票" in GBK
	tests := []struct {
		in, want string
	}{
		{"invoice.pdf", "invoice.pdf"},
		{"../../etc/passwd.pdf", "....etcpasswd.pdf"},
		{"bad\x00\tname.pdf", "badname.pdf"},
		{gbk, "发票.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanFilename(tt.in); got != tt.want {
			t.Errorf("CleanFilename(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCredentialsAddr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "imap.qq.com:993", Credentials{Server: "imap.qq.com"}.Addr())
	assert.Equal(t, "mail.example.com:143", Credentials{Server: "mail.example.com", Port: 143}.Addr())
}
