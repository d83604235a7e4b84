package history

import "errors"

var ErrHistory = errors.New("history ledger error")
