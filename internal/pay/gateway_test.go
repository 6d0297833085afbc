package pay

import "testing"

func TestTradeStatusClassification(t *testing.T) {
	paid := []string{TradeStatusSuccess, TradeStatusFinished}
	for _, status := range paid {
		if !IsPaidStatus(status) {
			t.Errorf("%s should be a paid status", status)
		}
		if IsClosedStatus(status) {
			t.Errorf("%s should not be a closed status", status)
		}
	}

	closed := []string{TradeStatusClosed, TradeStatusCanceled}
	for _, status := range closed {
		if !IsClosedStatus(status) {
			t.Errorf("%s should be a closed status", status)
		}
		if IsPaidStatus(status) {
			t.Errorf("%s should not be a paid status", status)
		}
	}

	// 未知状态两类都不命中，由上层拒绝
	for _, status := range []string{"WAIT_BUYER_PAY", "", "trade_success"} {
		if IsPaidStatus(status) || IsClosedStatus(status) {
			t.Errorf("%q should not be classified", status)
		}
	}
}
