package backup

import "github.com/roach88/clientbook/internal/store"

// FilterOptions selects which related records FilterCustomers keeps.
type FilterOptions struct {
	Appointments bool
	Images       bool
	Notes        bool
}

// AllRelated keeps every kind of related record.
var AllRelated = FilterOptions{Appointments: true, Images: true, Notes: true}

// FilterCustomers returns a copy of p restricted to the customers in ids and,
// as selected by opts, their appointments, images and notes. Import itself
// never filters; callers narrow the payload first.
func FilterCustomers(p *Payload, ids []int64, opts FilterOptions) *Payload {
	keep := make(map[int64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	out := newPayload()
	out.Meta = p.Meta
	for _, c := range p.Customers {
		if keep[c.ID] {
			out.Customers = append(out.Customers, c)
		}
	}
	if opts.Appointments {
		for _, a := range p.Appointments {
			if keep[a.CustomerID] {
				out.Appointments = append(out.Appointments, a)
			}
		}
	}
	if opts.Images {
		for _, img := range p.Images {
			if keep[img.CustomerID] {
				out.Images = append(out.Images, img)
			}
		}
	}
	if opts.Notes {
		for custID, list := range p.CustomerNotes {
			if keep[custID] {
				out.CustomerNotes[custID] = append([]store.Note(nil), list...)
			}
		}
	}
	return out
}
