package engine

import (
	"context"

	"github.com/cloudx-io/assetauction/core"
)

// Withdraw pays out the whole claimable balance of account in currency and
// returns the amount paid. The balance is zeroed before the transfer, so a
// transfer callback that reaches the engine sees nothing left to withdraw. A
// failed transfer restores the balance.
func (e *Engine) Withdraw(ctx context.Context, account, currency core.Address) (core.Amount, error) {
	const op = "withdraw"

	var paid core.Amount
	err := e.run(ctx, op, func(tx *opTx) error {
		if account == (core.Address{}) {
			return newError(KindInvalidArgument, op, "account is the zero address")
		}
		paid = e.ledger.Drain(account, currency)
		if paid.IsZero() {
			return newError(KindInvalidState, op, "%s has nothing to withdraw in %s", account.Hex(), currency.Hex())
		}
		tx.emit(core.BalanceUpdated{Account: account, Currency: currency, Balance: core.ZeroAmount})

		return e.gateway.payOut(ctx, op, currency, account, paid)
	})
	if err != nil {
		return core.ZeroAmount, err
	}

	e.metrics.withdrawals.Add(ctx, 1)
	log.Infof("%s withdrew %s of %s", account.Hex(), paid, currency.Hex())
	return paid, nil
}
