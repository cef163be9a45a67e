package warmer

// Identity is one (instance IP, credential) pairing. Each identity runs the
// full URL list independently. An empty Instance means default routing; a nil
// Credential is the guest session.
type Identity struct {
	Instance   string
	Credential *Credential
}

// PoolID returns the key under which this identity's Result is aggregated.
func (id Identity) PoolID() string {
	instance := id.Instance
	if instance == "" {
		instance = "default"
	}
	user := "guest"
	if id.Credential != nil {
		user = id.Credential.Username
	}
	return instance + "/" + user
}

// identities expands Options into the cross product of instances and
// credentials. A single no-override instance stands in when none are
// configured, and the guest identity is prepended unless disabled.
func identities(opts Options) []Identity {
	instances := opts.Instances
	if len(instances) == 0 {
		instances = []string{""}
	}

	var credentials []*Credential
	if !opts.DisableGuestCrawl {
		credentials = append(credentials, nil)
	}
	for i := range opts.Credentials {
		credentials = append(credentials, &opts.Credentials[i])
	}

	ids := make([]Identity, 0, len(instances)*len(credentials))
	for _, instance := range instances {
		for _, cred := range credentials {
			ids = append(ids, Identity{Instance: instance, Credential: cred})
		}
	}
	return ids
}
