package httptransport

import (
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/scan"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 联系人错误
	storage.ErrContactNotFound:     "联系人不存在",
	storage.ErrMailboxNumberTaken:  "该信箱号已被占用",
	domain.ErrContactNameRequired:  "联系人姓名和公司名不能同时为空",
	domain.ErrMailboxNumberInvalid: "信箱号格式无效",
	domain.ErrEmailInvalid:         "邮箱地址格式无效",

	// 邮件记录错误
	storage.ErrMailItemNotFound:  "邮件记录不存在",
	service.ErrStaffRequired:     "必须填写经办人",
	service.ErrInvalidStatus:     "邮件状态无效",
	service.ErrInvalidType:       "邮件类型无效",
	service.ErrDuplicateMailItem: "该联系人刚刚登记过同类邮件，如确认无误请强制提交",
	domain.ErrQuantityInvalid:    "数量必须大于等于 1",

	// 待办错误
	storage.ErrTodoNotFound:      "待办事项不存在",
	service.ErrTodoTitleRequired: "待办标题不能为空",

	// 通知错误
	service.ErrContactNoEmail:    "该联系人未登记邮箱地址",
	service.ErrNotifyRateLimited: "该联系人短时间内已收到通知，请稍后再试",
	service.ErrNothingToNotify:   "该联系人没有待通知的邮件",

	// Gmail 授权错误
	service.ErrGmailNotConfigured: "系统未配置 Gmail 授权",
	service.ErrGmailNotConnected:  "尚未关联 Gmail 账号",
	service.ErrOAuthStateMismatch: "授权状态校验失败，请重新发起授权",
	storage.ErrOAuthTokenNotFound: "未找到授权凭证",

	// 扫描会话错误
	scan.ErrNoActiveSession: "当前没有进行中的扫描会话",
	scan.ErrBatchTooLarge:   "批量照片数量超出上限",
	scan.ErrEmptyBatch:      "批量提交不能为空",
	scan.ErrSessionEmpty:    "扫描会话中没有任何条目",
	scan.ErrItemNotFound:    "扫描条目不存在",
	scan.ErrNothingToSubmit: "没有已匹配的条目可以提交",

	// 账号错误
	storage.ErrUserNotFound: "用户不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidPhoto   = "照片数据无效"
	MsgPhotoTooLarge  = "照片体积超出限制"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgPermissionDenied   = "权限不足"

	// 联系人相关
	MsgContactCreateFailed = "创建联系人失败"
	MsgContactListFailed   = "获取联系人列表失败"
	MsgContactUpdateFailed = "更新联系人失败"
	MsgContactDeleteFailed = "删除联系人失败"

	// 邮件记录相关
	MsgMailItemLogFailed    = "登记邮件失败"
	MsgMailItemListFailed   = "获取邮件列表失败"
	MsgMailItemUpdateFailed = "更新邮件记录失败"
	MsgMailItemDeleteFailed = "删除邮件记录失败"
	MsgHistoryListFailed    = "获取操作历史失败"
	MsgMailLogFailed        = "获取邮件日志失败"

	// 待办相关
	MsgTodoCreateFailed = "创建待办失败"
	MsgTodoListFailed   = "获取待办列表失败"
	MsgTodoUpdateFailed = "更新待办失败"
	MsgTodoDeleteFailed = "删除待办失败"

	// 通知相关
	MsgNotifyFailed = "发送取件通知失败"

	// 扫描相关
	MsgScanStartFailed   = "创建扫描会话失败"
	MsgScanCaptureFailed = "处理扫描照片失败"
	MsgScanSubmitFailed  = "提交扫描批次失败"
	MsgPhotoNotFound     = "照片不存在"

	// 统计相关
	MsgStatisticsGetFailed = "获取统计数据失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
