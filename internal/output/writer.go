package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"oneacct/internal/record"
	"oneacct/internal/validate"

	"go.uber.org/zap"
)

// FileName 返回批次序号对应的输出文件名，网格核算格式使用 14 位补零。
func FileName(outputType string, seq int) string {
	if outputType == validate.TypeAPEL {
		return fmt.Sprintf("%014d", seq)
	}
	return strconv.Itoa(seq)
}

// Writer 把渲染结果写入输出目录，每个批次一个文件。
type Writer struct {
	Dir        string
	OutputType string
	Logger     *zap.Logger
}

// Write 先写临时文件再重命名，读者不会看到写了一半的文件。返回最终路径。
func (w *Writer) Write(seq int, data []byte) (string, error) {
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(w.Dir, ".oneacct_export-*")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("设置文件权限失败: %w", err)
	}

	target := filepath.Join(w.Dir, FileName(w.OutputType, seq))
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("重命名输出文件失败: %w", err)
	}
	w.Logger.Debug("output file written", zap.String("path", target), zap.Int("bytes", len(data)))
	return target, nil
}

// CleanDir 删除上次运行遗留的输出文件（文件名全为数字）。目录不存在时视为无需清理。
func CleanDir(dir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("读取输出目录失败: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !record.IsNumber(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("删除旧输出文件 %s 失败: %w", e.Name(), err)
		}
		removed++
	}
	logger.Debug("output directory cleaned", zap.String("dir", dir), zap.Int("removed", removed))
	return removed, nil
}
