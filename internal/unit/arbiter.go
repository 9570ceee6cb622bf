package unit

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/logging"
	"github.com/any-hub/arbiter/internal/transport"
)

// ArbiterOptions 控制 Arbiter 的依赖注入与失败处理。
type ArbiterOptions struct {
	Transport transport.Transport
	Logger    *logrus.Logger
	// KeepLastGoodOnFailure 为 true 时，拉取失败不会清空已缓存的数据。
	KeepLastGoodOnFailure bool
}

// Arbiter 是数据来源于固定 URL 的单元，Dispatch 会用远端结果覆盖本地数据。
type Arbiter struct {
	*Unit

	fullURL      string
	transport    transport.Transport
	logger       *logrus.Logger
	keepLastGood bool
}

// NewArbiter 创建 Arbiter；fullURL 为空时返回 ConfigurationError，alias 为空时回退为 fullURL。
func NewArbiter(fullURL, alias string, opts ArbiterOptions) (*Arbiter, error) {
	if fullURL == "" {
		return nil, NewConfigurationError("fullUrl", "no url given")
	}
	if alias == "" {
		alias = fullURL
	}
	base, err := New(alias, nil)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	tr := opts.Transport
	if tr == nil {
		tr = transport.NewHTTPTransport(nil, logger)
	}

	return &Arbiter{
		Unit:         base,
		fullURL:      fullURL,
		transport:    tr,
		logger:       logger,
		keepLastGood: opts.KeepLastGoodOnFailure,
	}, nil
}

// FullURL 返回该单元绑定的远端地址。
func (a *Arbiter) FullURL() string {
	return a.fullURL
}

// Dispatch 向 fullURL 发送请求并更新本地数据。payload 缺失（含 nil map/切片/指针）时发送 GET，否则以 JSON
// 正文发送 POST。传输或解析失败只记录日志，数据被置为 nil（缺失）并返回 nil，
// 不会向调用方返回错误。
func (a *Arbiter) Dispatch(ctx context.Context, payload any) (any, error) {
	method := http.MethodGet
	if transport.IsAbsent(payload) {
		payload = nil
	} else {
		method = http.MethodPost
	}

	result, err := a.transport.Perform(ctx, a.fullURL, payload)
	if err != nil {
		fields := logging.UnitFields(a.Alias(), a.fullURL, method)
		fields["action"] = "dispatch"
		fields["keep_last_good"] = a.keepLastGood
		a.logger.WithFields(fields).WithError(err).Warn("dispatch_failed")
		if a.keepLastGood {
			return a.Data(), nil
		}
		a.SetData(nil)
		return nil, nil
	}

	a.SetData(result)
	return result, nil
}
