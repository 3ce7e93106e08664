package patcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/narizgnaw/post-web-build/internal/snippet"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrMissingInput   = errors.New("missing input")
	ErrMalformedInput = errors.New("malformed input")
)

// Outcome 一次成功执行的结果
type Outcome int

const (
	Injected Outcome = iota
	AlreadyApplied
)

func (o Outcome) String() string {
	switch o {
	case Injected:
		return "injected"
	case AlreadyApplied:
		return "already-applied"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	Path    string
}

// Patcher 向构建产物插入通知片段
type Patcher struct {
	fs      afero.Fs
	path    string
	snippet *snippet.Snippet
	logger  *zap.Logger
}

// NewPatcher 创建 Patcher，logger 为 nil 时不输出日志
func NewPatcher(fs afero.Fs, path string, s *snippet.Snippet, logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{
		fs:      fs,
		path:    path,
		snippet: s,
		logger:  logger.Named("patcher"),
	}
}

// Path 目标文件路径
func (p *Patcher) Path() string {
	return p.path
}

// Apply 执行一次插入，已插入时不做任何写入
func (p *Patcher) Apply() (Result, error) {
	result := Result{Path: p.path}

	info, err := p.fs.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return result, errors.Errorf("%w: %s not found", ErrMissingInput, p.path)
		}
		return result, errors.Wrap(err, 0)
	}
	if info.IsDir() {
		return result, errors.Errorf("%w: %s is a directory", ErrMissingInput, p.path)
	}

	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return result, errors.Wrap(err, 0)
	}
	content := string(data)
	p.logger.Debug("目标文件已读取", zap.String("path", p.path), zap.Int("bytes", len(data)))

	// 检查是否已经插入（幂等性）
	if strings.Contains(content, snippet.Marker) {
		p.logger.Debug("幂等标记已存在，跳过", zap.String("marker", snippet.Marker))
		result.Outcome = AlreadyApplied
		return result, nil
	}

	if !strings.Contains(content, snippet.Anchor) {
		return result, errors.Errorf("%w: could not find \"%s\" in %s", ErrMalformedInput, snippet.Anchor, p.path)
	}

	text, err := p.snippet.Render()
	if err != nil {
		return result, err
	}

	patched, err := Inject(content, text, snippet.Anchor)
	if err != nil {
		return result, err
	}

	if err := p.write(patched, info.Mode().Perm()); err != nil {
		return result, err
	}

	p.logger.Debug("片段已插入", zap.String("path", p.path), zap.Int("bytes", len(patched)))
	result.Outcome = Injected
	return result, nil
}

// write 先写入同目录临时文件，再重命名覆盖目标文件
func (p *Patcher) write(content string, perm os.FileMode) error {
	dir, base := filepath.Split(p.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := afero.TempFile(p.fs, dir, "."+base+".*.tmp")
	if err != nil {
		return errors.Wrap(err, 0)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = p.fs.Remove(tmpPath)
		return errors.Wrap(err, 0)
	}
	if err := tmp.Close(); err != nil {
		_ = p.fs.Remove(tmpPath)
		return errors.Wrap(err, 0)
	}

	if err := p.fs.Chmod(tmpPath, perm); err != nil {
		p.logger.Warn("设置临时文件权限失败", zap.String("path", tmpPath), zap.Error(err))
	}

	if err := p.fs.Rename(tmpPath, p.path); err != nil {
		// 清理临时文件，目标文件保持原样
		_ = p.fs.Remove(tmpPath)
		return errors.Wrap(err, 0)
	}
	return nil
}

// Inject 在 anchor 第一次出现的位置之前插入 text
func Inject(content, text, anchor string) (string, error) {
	k := strings.Index(content, anchor)
	if k < 0 {
		return "", errors.Errorf("%w: could not find \"%s\"", ErrMalformedInput, anchor)
	}

	var b strings.Builder
	b.Grow(len(content) + len(text))
	b.WriteString(content[:k])
	b.WriteString(text)
	b.WriteString(content[k:])
	return b.String(), nil
}
