package telemetry

// API is how every scraper component reports what happened to it, components
// never write to a logger directly so tests can record and assert on reports.
type API interface {
	// ReportBroken reports something that needs a fix, like an unwritable
	// cache directory or a page layout the extractor no longer understands.
	//
	// `id` names the component, not the failing line. A failed detail page in
	// the wikimon scraper is `scraper.creature`, with the url and error as
	// params. Ids are lowercase, underscores separate words of a component
	// name and dashes separate a method from its component.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a failure the run survives, a missing image or a
	// page that was skipped. `id` follows ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug is only visible at debug level.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the value of a counter at this moment, successive
	// reports replace each other rather than add up.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with "<namespace>: " before handing the report
// to the inner API.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

// Scope returns an API whose namespace is "<namespace>.<sub>".
func (s ScopedAPI) Scope(sub string) ScopedAPI {
	return ScopedAPI{namespace: s.namespace + "." + sub, inner: s.inner}
}

func (s ScopedAPI) id(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.id(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.id(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.id(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.id(id), count)
}
