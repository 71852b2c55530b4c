package errcode

// 异步通知中携带的错误码：
// - 0：无错误
// - 4xxx：可恢复的业务错误，调用方可以处理
// - 5xxx：系统错误
const (
	OK              = 0
	Validation      = 4000
	ResourceMissing = 4004
	NotFound        = 4040
	UnlinkedItems   = 4220
	SystemError     = 5000
	Upstream        = 5020
)
