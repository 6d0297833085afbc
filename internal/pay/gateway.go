package pay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// 支付宝交易状态，按不透明标签处理，仅用于归类
const (
	TradeStatusSuccess  = "TRADE_SUCCESS"
	TradeStatusFinished = "TRADE_FINISHED"
	TradeStatusClosed   = "TRADE_CLOSED"
	TradeStatusCanceled = "TRADE_CANCELED"
)

// ErrInvalidSignature 回调验签失败
// 通知接口没有会话认证，验签是唯一的信任边界
var ErrInvalidSignature = errors.New("通知验签失败")

// ProviderError 支付网关返回的业务失败
type ProviderError struct {
	Code string
	Msg  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("支付网关错误[%s]: %s", e.Code, e.Msg)
}

// PrecreateRequest 预下单请求
type PrecreateRequest struct {
	OutTradeNo string
	Subject    string
	Amount     float64
}

// PrecreateResult 预下单结果
type PrecreateResult struct {
	QRCode string // 买家扫码支付的二维码内容
}

// Notification 验签通过后的异步通知内容
type Notification struct {
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	TotalAmount string
}

// Gateway 支付网关接口
type Gateway interface {
	// Precreate 调用网关预下单，返回可扫码的支付凭据
	Precreate(ctx context.Context, req PrecreateRequest) (*PrecreateResult, error)
	// VerifyNotification 验证异步通知签名并解析内容，验签失败返回ErrInvalidSignature
	VerifyNotification(values url.Values) (*Notification, error)
}

// IsPaidStatus 该交易状态是否表示支付完成
func IsPaidStatus(status string) bool {
	return status == TradeStatusSuccess || status == TradeStatusFinished
}

// IsClosedStatus 该交易状态是否表示交易关闭
func IsClosedStatus(status string) bool {
	return status == TradeStatusClosed || status == TradeStatusCanceled
}
