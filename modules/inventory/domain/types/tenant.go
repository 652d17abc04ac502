package types

// Tenant is one directory row of the shared tenant registry. Rows are
// created out-of-band; this core only reads them.
type Tenant struct {
	ID          string
	Name        string
	HeaderAlias string
	Hostname    string
	SchemaName  string
}

// TenantInfo carries the caller-supplied tenant identifiers of one request.
// Header is optional; an empty string means the header was absent.
type TenantInfo struct {
	Header   string
	Hostname string
}
