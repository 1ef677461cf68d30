package retry

import "context"

// DoWithResult 带类型安全返回值的重试执行。
// Retryer 接口本身保持非泛型，方便作为字段和参数传递。
func DoWithResult[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
