package credits

import "github.com/icon-project/minthub/module"

// CostTable prices each operation kind in credits. A retry is priced as
// the operation it retries, never on its own.
type CostTable map[module.OperationKind]int64

func DefaultCosts() CostTable {
	return CostTable{
		module.OpCreate:   10,
		module.OpMint:     5,
		module.OpUpdate:   2,
		module.OpTransfer: 3,
	}
}

func (t CostTable) Cost(op module.OperationKind) int64 {
	return t[op]
}
