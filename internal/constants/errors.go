package constants

// 通用错误消息
const (
	// 认证相关错误
	ErrUnauthorized           = "未授权，请先登录"
	ErrInvalidToken           = "无效的Token"
	ErrInsufficientPermission = "权限不足"

	// 参数相关错误
	ErrInvalidParams  = "参数错误"
	ErrInvalidRequest = "无效请求格式"

	// 订单相关错误
	ErrOrderNotFound  = "订单不存在"
	ErrOrderNoEmpty   = "订单号不能为空"
	ErrOrderForbidden = "无权访问此订单"
	ErrCreateOrder    = "创建订单失败"

	// 套餐相关错误
	ErrPlanNotFound = "套餐不存在"

	// 用户相关错误
	ErrUserNotFound = "用户不存在"

	// 系统错误
	ErrInternalServer = "服务器内部错误"
)

// 成功消息
const (
	SuccessCreate = "创建成功"
	SuccessGet    = "获取成功"
)

// 支付宝异步通知应答体，支付宝只识别"success"/"fail"文本
const (
	NotifyAckSuccess = "success"
	NotifyAckFail    = "fail"
)
