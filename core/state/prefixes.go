package state

import "marginledger/crypto"

var (
	balancePrefix    = []byte("bal:")
	supplyPrefix     = []byte("supply:")
	settingsKey      = []byte("settings")
	permissionPrefix = []byte("perm:")
	debtKey          = []byte("debt")
	vaultPrefix      = []byte("vault:")
	poolPrefix       = []byte("pool:")
	positionPrefix   = []byte("pos:")
	requestPrefix    = []byte("req:")
	orderPrefix      = []byte("order:")
	strategyPrefix   = []byte("strat:")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func balanceKey(addr crypto.Address, asset string) []byte {
	return prefixed(balancePrefix, addr[:], []byte(asset))
}

func supplyKey(asset string) []byte { return prefixed(supplyPrefix, []byte(asset)) }

func permissionKey(authority crypto.Address) []byte {
	return prefixed(permissionPrefix, authority[:])
}

func vaultKey(asset string) []byte { return prefixed(vaultPrefix, []byte(asset)) }

func poolKey(id crypto.Address) []byte { return prefixed(poolPrefix, id[:]) }

func positionKey(id crypto.Address) []byte { return prefixed(positionPrefix, id[:]) }

func requestKey(owner crypto.Address) []byte { return prefixed(requestPrefix, owner[:]) }

func orderKey(position crypto.Address, kind uint8) []byte {
	return prefixed(orderPrefix, position[:], []byte{kind})
}

func strategyKey(id crypto.Address) []byte { return prefixed(strategyPrefix, id[:]) }
