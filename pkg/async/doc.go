// Package async provides safe background execution for work that must not
// block or fail a request, such as retrying a cache invalidation.
//
// SafeGo runs a function in a goroutine with panic recovery, a timeout and
// logrus error logging:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "cache invalidation retry", func(ctx context.Context) error {
//		return async.Retry(ctx, async.DefaultRetryPolicy(), func(ctx context.Context) error {
//			return store.Delete(ctx, key)
//		})
//	})
//
// Retry doubles its delay after each failed attempt and stops early when the
// context is cancelled.
package async
