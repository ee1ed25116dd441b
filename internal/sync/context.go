package sync

import "context"

type inboundKey struct{}

// WithInbound 标记该请求上下文来自对端站点的同步推送。
// 标记只跟随请求上下文传播,同进程内其他请求不受影响。
func WithInbound(ctx context.Context) context.Context {
	return context.WithValue(ctx, inboundKey{}, true)
}

// IsInbound 判断当前调用链是否由入站同步请求触发,
// 用于阻断「收到同步 -> 再推回对端」的回环。
func IsInbound(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	flag, _ := ctx.Value(inboundKey{}).(bool)
	return flag
}
