package model

// RefreshSearchIndex recomputes the stored search string. The engine
// calls it right before persisting so the websearch surface always sees
// the current attribute values.

func (v *Vrf) RefreshSearchIndex() { v.SearchIndex = v.SearchString() }

func (s *Subnet) RefreshSearchIndex() { s.SearchIndex = s.SearchString() }

func (z *DnsZone) RefreshSearchIndex() { z.SearchIndex = z.SearchString() }

func (r *DnsRecord) RefreshSearchIndex() { r.SearchIndex = r.SearchString() }

func (r *DhcpRecord) RefreshSearchIndex() { r.SearchIndex = r.SearchString() }

func (i *Ip) RefreshSearchIndex() { i.SearchIndex = i.SearchString() }

func (m *Mac) RefreshSearchIndex() { m.SearchIndex = m.SearchString() }

func (u *User) RefreshSearchIndex() { u.SearchIndex = u.SearchString() }

func (e *Environment) RefreshSearchIndex() { e.SearchIndex = e.SearchString() }

func (r *Rule) RefreshSearchIndex() { r.SearchIndex = r.SearchString() }
