package pay

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/smartwalle/alipay/v3"

	"nebulaai/config"
	"nebulaai/pkg/logger"
)

// 预下单接口的超时上限，超时按网关错误处理
const precreateTimeout = 10 * time.Second

// AlipayGateway 支付宝当面付网关
type AlipayGateway struct {
	client    *alipay.Client
	notifyURL string
	logger    *logger.Logger
}

// NewAlipayGateway 创建支付宝网关客户端
func NewAlipayGateway(cfg config.AlipayConfig, logger *logger.Logger) (*AlipayGateway, error) {
	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, fmt.Errorf("初始化支付宝客户端失败: %w", err)
	}
	if err := client.LoadAliPayPublicKey(cfg.AlipayPublicKey); err != nil {
		return nil, fmt.Errorf("加载支付宝公钥失败: %w", err)
	}

	return &AlipayGateway{
		client:    client,
		notifyURL: cfg.NotifyURL,
		logger:    logger,
	}, nil
}

// Precreate 调用当面付预下单接口
func (g *AlipayGateway) Precreate(ctx context.Context, req PrecreateRequest) (*PrecreateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, precreateTimeout)
	defer cancel()

	var p alipay.TradePreCreate
	p.OutTradeNo = req.OutTradeNo
	p.Subject = req.Subject
	// 金额必须与网关侧接受的金额一致，固定两位小数
	p.TotalAmount = fmt.Sprintf("%.2f", req.Amount)
	p.NotifyURL = g.notifyURL

	rsp, err := g.client.TradePreCreate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("调用预下单接口失败: %w", err)
	}
	if rsp.IsFailure() {
		msg := rsp.SubMsg
		if msg == "" {
			msg = rsp.Msg
		}
		return nil, &ProviderError{Code: string(rsp.Code), Msg: msg}
	}

	g.logger.Info("预下单成功", "out_trade_no", req.OutTradeNo, "amount", p.TotalAmount)
	return &PrecreateResult{QRCode: rsp.QRCode}, nil
}

// VerifyNotification 验证异步通知签名并转换为内部结构
func (g *AlipayGateway) VerifyNotification(values url.Values) (*Notification, error) {
	noti, err := g.client.DecodeNotification(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &Notification{
		OutTradeNo:  noti.OutTradeNo,
		TradeNo:     noti.TradeNo,
		TradeStatus: string(noti.TradeStatus),
		TotalAmount: noti.TotalAmount,
	}, nil
}
