package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-errors/errors"
	"github.com/narizgnaw/post-web-build/internal/patcher"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// Applier 执行一次插入
type Applier interface {
	Path() string
	Apply() (patcher.Result, error)
}

// Watcher 监听构建产物，构建重新生成文件后自动再次插入
type Watcher struct {
	applier  Applier
	debounce time.Duration
	report   func(patcher.Result, error)
	logger   *zap.Logger
}

// New 创建 Watcher，每次执行的结果交给 report
func New(applier Applier, report func(patcher.Result, error), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if report == nil {
		report = func(patcher.Result, error) {}
	}
	return &Watcher{
		applier:  applier,
		debounce: DefaultDebounce,
		report:   report,
		logger:   logger.Named("watcher"),
	}
}

// SetDebounce 设置事件合并间隔
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run 先执行一次，然后持续监听直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer fsw.Close()

	target := filepath.Clean(w.applier.Path())
	// 监听所在目录，构建工具可能删除后重建文件
	dir := filepath.Dir(target)
	if err := fsw.Add(dir); err != nil {
		return errors.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("开始监听", zap.String("dir", dir), zap.String("target", target))

	w.apply()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("停止监听")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.logger.Debug("目标文件变更", zap.String("op", event.Op.String()))
			pending = time.After(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("监听出错", zap.Error(err))
		case <-pending:
			pending = nil
			w.apply()
		}
	}
}

func (w *Watcher) apply() {
	result, err := w.applier.Apply()
	if err != nil {
		w.logger.Debug("插入失败", zap.Error(err))
	}
	w.report(result, err)
}
