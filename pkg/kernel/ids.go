package kernel

// PrincipalID identifies a human principal (club admin or coach).
type PrincipalID string

func NewPrincipalID(id string) PrincipalID { return PrincipalID(id) }
func (p PrincipalID) String() string       { return string(p) }
func (p PrincipalID) IsEmpty() bool        { return string(p) == "" }

// TenantID is a tenant subdomain. It doubles as the dataset partition key.
type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }
