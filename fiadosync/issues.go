package fiadosync

// pushOutcome folds the per-record results of one push batch: how many
// records of each kind were applied, plus one issue per skipped record.
type pushOutcome struct {
	applied KindCounts
	issues  []RecordIssue
}

func (o *pushOutcome) countApplied(kind string) {
	switch kind {
	case KindClientes:
		o.applied.Clientes++
	case KindProductos:
		o.applied.Productos++
	case KindMovimientos:
		o.applied.Movimientos++
	case KindPedidos:
		o.applied.Pedidos++
	}
}

func (o *pushOutcome) addIssue(kind string, id *WireID, reason string, err error) {
	issue := RecordIssue{Kind: kind, Reason: reason}
	if id != nil {
		v := id.Int64()
		issue.ID = &v
	}
	if err != nil {
		issue.Detail = err.Error()
	}
	o.issues = append(o.issues, issue)
}

// fullyApplied reports whether every submitted record was applied.
func (o *pushOutcome) fullyApplied() bool {
	return len(o.issues) == 0
}
