package notifier

import (
	"fmt"
	"time"
)

// ThrottleError возвращается, когда приемник уведомлений попросил подождать
// (прочитан Retry-After). Ретраер учитывает задержку вместо стандартного бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}
