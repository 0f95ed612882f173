package recommend

import "context"

// PageOf returns page (1-based) of ids with limit entries per page. Repeated
// ids keep their first position only, so no id shows up on two pages.
func PageOf(ids []string, page, limit int) []string {
	if page < 1 || limit < 1 {
		return []string{}
	}
	uniq := dedupe(ids, nil)

	start := (page - 1) * limit
	if start >= len(uniq) {
		return []string{}
	}
	end := min(start+limit, len(uniq))
	return uniq[start:end]
}

// dedupe drops ids already in seen (or earlier in ids) and records the rest.
func dedupe(ids []string, seen map[string]struct{}) []string {
	if seen == nil {
		seen = make(map[string]struct{}, len(ids))
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Pager walks the remote pages of one section. It remembers every id it has
// handed out and filters them from later pages, so the pages it returns are
// disjoint even when the service repeats itself.
type Pager struct {
	src     PageSource
	userID  int64
	section string
	limit   int

	page int
	done bool
	seen map[string]struct{}
}

// PageSource is anything that serves numbered pages of a section; *Client
// is the real one.
type PageSource interface {
	More(ctx context.Context, userID int64, section string, page, limit int) (*Page, error)
}

func NewPager(src PageSource, userID int64, section string, limit int) *Pager {
	return &Pager{
		src:     src,
		userID:  userID,
		section: section,
		limit:   limit,
		seen:    make(map[string]struct{}),
	}
}

// Next returns the next page. It returns (nil, nil) once the service reports
// no more pages.
func (p *Pager) Next(ctx context.Context) ([]string, error) {
	if p.done {
		return nil, nil
	}
	p.page++

	res, err := p.src.More(ctx, p.userID, p.section, p.page, p.limit)
	if err != nil {
		return nil, err
	}
	if !res.HasMore {
		p.done = true
	}
	return dedupe(res.MovieIDs, p.seen), nil
}

// Page returns the current page number; 0 before the first Next.
func (p *Pager) Page() int {
	return p.page
}

// Pager starts a Pager over this client.
func (c *Client) Pager(userID int64, section string, limit int) *Pager {
	return NewPager(c, userID, section, limit)
}
