// Package module provides the collector's module registry.
//
// A module is a named functional unit, implemented by a Provider, that
// exposes services under (module name, service key) and declares the modules
// it requires. The Manager initializes modules in dependency order and then
// serves read-only lookups.
//
// Lifecycle:
//   - Register: providers are added during startup
//   - Init: topological sort, then Prepare (bind services) and Start per module
//   - NotifyAfterCompleted: optional hook once every module has started
//   - Shutdown: reverse start order
//
// Guarantees:
//   - A module's services are unreachable until its Start returns
//   - At most one implementation is bound per service key
//   - Cycles and missing modules fail Init before any module starts
//   - The registry is read-only once Init begins
//
// Example Usage:
//
//	m := module.NewManager(logger)
//	m.Register(memory.NewProvider())
//	m.Register(analysis.NewProvider(settings, deps))
//	if err := m.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//	dao, err := module.Service[storage.PersistenceDAO[*table.Segment]](m, storage.ModuleName, storage.SegmentDAO)
package module
