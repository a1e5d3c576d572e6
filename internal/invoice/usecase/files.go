package usecase

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	CSVFilename     = "发票信息汇总.csv"
	timestampLayout = "20060102150405"
)

var (
	importCSVHeader = []string{"发票号码", "开票日期", "开票方名称", "含税金额", "项目名称", "原文件名", "重命名后文件名"}
	exportCSVHeader = []string{"发票号码", "开票日期", "开票方名称", "含税金额", "项目名称", "文件名"}
)

// UserDir is where a user's zips and stored invoice files live.
func UserDir(staticDir, userID string) string {
	return filepath.Join(staticDir, "user_"+userID)
}

func filesDir(staticDir, userID string) string {
	return filepath.Join(UserDir(staticDir, userID), "files")
}

func timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
