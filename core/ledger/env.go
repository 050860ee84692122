package ledger

import (
	"time"

	"marginledger/core/events"
	"marginledger/core/state"
	"marginledger/native/access"
	"marginledger/native/bank"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/request"
	"marginledger/native/risk"
	"marginledger/native/strategy"
	"marginledger/native/vault"
)

// env binds every engine to one state overlay, one event buffer and one clock
// reading for the duration of a batch.
type env struct {
	manager    *state.Manager
	bank       *bank.Engine
	access     *access.Engine
	risk       *risk.Engine
	vaults     *vault.Engine
	pools      *pool.Engine
	requests   *request.Coordinator
	margin     *margin.Engine
	strategies *strategy.Engine
	venues     map[string]Exchanger
}

func newEnv(manager *state.Manager, emitter events.Emitter, now time.Time, venues map[string]Exchanger) *env {
	clock := func() time.Time { return now }

	bankEngine := bank.NewEngine()
	bankEngine.SetState(manager)
	bankEngine.SetEmitter(emitter)

	accessEngine := access.NewEngine()
	accessEngine.SetState(manager)
	accessEngine.SetEmitter(emitter)

	riskEngine := risk.NewEngine()
	riskEngine.SetState(manager)
	riskEngine.SetRootCheck(accessEngine)
	riskEngine.SetEmitter(emitter)

	vaultEngine := vault.NewEngine()
	vaultEngine.SetState(manager)
	vaultEngine.SetBank(bankEngine)
	vaultEngine.SetAccess(accessEngine)
	vaultEngine.SetPauses(accessEngine)
	vaultEngine.SetEmitter(emitter)

	poolEngine := pool.NewEngine()
	poolEngine.SetState(manager)
	poolEngine.SetVaults(vaultEngine)
	poolEngine.SetAccess(accessEngine)
	poolEngine.SetEmitter(emitter)

	coordinator := request.NewCoordinator()
	coordinator.SetState(manager)
	coordinator.SetBank(bankEngine)
	coordinator.SetEmitter(emitter)

	marginEngine := margin.NewEngine()
	marginEngine.SetState(manager)
	marginEngine.SetBank(bankEngine)
	marginEngine.SetVaults(vaultEngine)
	marginEngine.SetPools(poolEngine)
	marginEngine.SetAccess(accessEngine)
	marginEngine.SetRisk(riskEngine)
	marginEngine.SetCoordinator(coordinator)
	marginEngine.SetPauses(accessEngine)
	marginEngine.SetEmitter(emitter)
	marginEngine.SetNowFunc(clock)

	strategyEngine := strategy.NewEngine()
	strategyEngine.SetState(manager)
	strategyEngine.SetBank(bankEngine)
	strategyEngine.SetVaults(vaultEngine)
	strategyEngine.SetAccess(accessEngine)
	strategyEngine.SetCoordinator(coordinator)
	strategyEngine.SetEmitter(emitter)
	strategyEngine.SetNowFunc(clock)

	return &env{
		manager:    manager,
		bank:       bankEngine,
		access:     accessEngine,
		risk:       riskEngine,
		vaults:     vaultEngine,
		pools:      poolEngine,
		requests:   coordinator,
		margin:     marginEngine,
		strategies: strategyEngine,
		venues:     venues,
	}
}
