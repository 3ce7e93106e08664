package snippet

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-errors/errors"
	"github.com/valyala/fasttemplate"
)

const (
	// Marker 幂等标记，仅在片段已插入时出现
	Marker = "CV visit notification"
	// Anchor 插入位置标记，片段插在它第一次出现之前
	Anchor = `<script src="index.js"></script>`

	// anchorIndent Godot 导出的 index.html 中 Anchor 所在行的缩进
	anchorIndent = "    "
)

var (
	ErrMissingWebhook = errors.New("webhook endpoint not configured (set WEBHOOK_URL or --webhook)")
	ErrInvalidWebhook = errors.New("webhook endpoint must be an absolute http(s) URL")
)

// source 首行沿用 Anchor 原有缩进，末尾补回 Anchor 的缩进
const source = `<script>
      // ` + Marker + `
      (function () {
        const webhook =
          {{webhook}};
        const time = new Date().toLocaleString("en-GB", { timeZone: "UTC" });
        const ref = new URLSearchParams(window.location.search).get("ref");
        const source = ref || document.referrer || "Direct / Unknown";
        fetch(webhook, {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({
            content: ` + "`" + `\u{1F3AE} **Autobattler opened!**\n\u23F0 ${time} UTC\n\u{1F3E2} Source: **${source}**` + "`" + `,
          }),
        }).catch(() => {});
      })();
    </script>
` + anchorIndent

var tmpl = fasttemplate.New(source, "{{", "}}")

// Snippet 待插入的通知脚本
type Snippet struct {
	Webhook string
}

// New 创建片段
func New(webhook string) *Snippet {
	return &Snippet{Webhook: strings.TrimSpace(webhook)}
}

// Render 渲染片段文本，webhook 以 JSON 字符串字面量写入脚本
func (s *Snippet) Render() (string, error) {
	if s.Webhook == "" {
		return "", ErrMissingWebhook
	}
	u, err := url.Parse(s.Webhook)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", errors.Errorf("%w: %q", ErrInvalidWebhook, s.Webhook)
	}

	literal, err := json.Marshal(s.Webhook)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	return tmpl.ExecuteString(map[string]interface{}{
		"webhook": string(literal),
	}), nil
}
