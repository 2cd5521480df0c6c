package allocation

import (
	"regexp"
	"strings"

	"github.com/librecode/producao/generic"
)

// =============================================================================
// BUCKETS
// =============================================================================

// Bucket is the role a revenue fact plays in the allocation.
type Bucket string

const (
	BucketClientRevenue    Bucket = "client_revenue"
	BucketClientCost       Bucket = "client_cost"
	BucketInternalOverhead Bucket = "internal_overhead"
	BucketAdvance          Bucket = "advance"
	BucketHealthInsurance  Bucket = "health_insurance"
	BucketTax              Bucket = "tax"
	BucketIgnored          Bucket = "ignored"
)

// CategoryRoots maps each bucket to the root of its category subtree.
// A fact belongs to the bucket of the nearest configured ancestor of its
// category, so a bucket may be nested inside another one.
type CategoryRoots struct {
	ClientRevenue    generic.CategoryID   `yaml:"client_revenue" json:"client_revenue"`
	ClientCost       generic.CategoryID   `yaml:"client_cost" json:"client_cost"`
	InternalOverhead generic.CategoryID   `yaml:"internal_overhead" json:"internal_overhead"`
	Advance          generic.CategoryID   `yaml:"advance" json:"advance"`
	HealthInsurance  generic.CategoryID   `yaml:"health_insurance" json:"health_insurance"`
	Tax              generic.CategoryID   `yaml:"tax" json:"tax"`
	Ignored          []generic.CategoryID `yaml:"ignored" json:"ignored"`
}

func (r CategoryRoots) index() map[generic.CategoryID]Bucket {
	m := make(map[generic.CategoryID]Bucket)
	set := func(id generic.CategoryID, b Bucket) {
		if id != "" {
			m[id] = b
		}
	}
	set(r.ClientRevenue, BucketClientRevenue)
	set(r.ClientCost, BucketClientCost)
	set(r.InternalOverhead, BucketInternalOverhead)
	set(r.Advance, BucketAdvance)
	set(r.HealthInsurance, BucketHealthInsurance)
	set(r.Tax, BucketTax)
	for _, id := range r.Ignored {
		set(id, BucketIgnored)
	}
	return m
}

// Classified holds the facts of a run partitioned by bucket, in input order.
type Classified struct {
	ClientRevenue    []RevenueFact
	ClientCost       []RevenueFact
	InternalOverhead []RevenueFact
	Advances         []RevenueFact
	HealthInsurance  []RevenueFact
	Taxes            []RevenueFact
	Ignored          []RevenueFact
}

func (c *Classified) add(b Bucket, f RevenueFact) {
	switch b {
	case BucketClientRevenue:
		c.ClientRevenue = append(c.ClientRevenue, f)
	case BucketClientCost:
		c.ClientCost = append(c.ClientCost, f)
	case BucketInternalOverhead:
		c.InternalOverhead = append(c.InternalOverhead, f)
	case BucketAdvance:
		c.Advances = append(c.Advances, f)
	case BucketHealthInsurance:
		c.HealthInsurance = append(c.HealthInsurance, f)
	case BucketTax:
		c.Taxes = append(c.Taxes, f)
	default:
		c.Ignored = append(c.Ignored, f)
	}
}

// =============================================================================
// CUSTOMER REFERENCE
// =============================================================================

var customerReferencePattern = regexp.MustCompile(`^\d+(\|\S+)?$`)

// ParseCustomerReference splits "<client id>|<tag>" into its parts. The tag
// is optional and opaque.
func ParseCustomerReference(ref string) (generic.ClientID, string, bool) {
	ref = strings.TrimSpace(ref)
	if !customerReferencePattern.MatchString(ref) {
		return "", "", false
	}
	id, tag, _ := strings.Cut(ref, "|")
	return generic.ClientID(id), tag, true
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier assigns facts to buckets by category subtree membership.
type Classifier struct {
	tree  *CategoryTree
	roots map[generic.CategoryID]Bucket
	memo  map[generic.CategoryID]Bucket
}

func NewClassifier(tree *CategoryTree, roots CategoryRoots) *Classifier {
	return &Classifier{
		tree:  tree,
		roots: roots.index(),
		memo:  make(map[generic.CategoryID]Bucket),
	}
}

// BucketOf resolves the bucket of a category. The second result is false
// when the category is unknown or lies outside every configured subtree.
func (c *Classifier) BucketOf(id generic.CategoryID) (Bucket, bool) {
	if b, ok := c.memo[id]; ok {
		return b, b != ""
	}
	root, ok := c.tree.NearestAncestor(id, func(cid generic.CategoryID) bool {
		_, isRoot := c.roots[cid]
		return isRoot
	})
	var b Bucket
	if ok {
		b = c.roots[root]
	}
	c.memo[id] = b
	return b, ok
}

// Classify partitions facts. Every problem is recorded in issues; facts
// with issues are left out of the result.
func (c *Classifier) Classify(facts []RevenueFact, issues *generic.DataQualityError) Classified {
	var out Classified
	for _, f := range facts {
		if _, known := c.tree.Node(f.CategoryID); !known {
			issues.Add(generic.IssueUnknownCategory, f, "fact %s: category %q does not exist", f.ID, f.CategoryID)
			continue
		}
		b, ok := c.BucketOf(f.CategoryID)
		if !ok {
			issues.Add(generic.IssueUnclassifiableCategory, f, "fact %s: category %q is outside every configured root", f.ID, f.CategoryID)
			continue
		}
		switch b {
		case BucketClientRevenue, BucketClientCost:
			if _, _, valid := ParseCustomerReference(f.CustomerReference); !valid {
				issues.Add(generic.IssueInvalidCustomerReference, f, "fact %s: customer reference %q does not match <client id>[|tag]", f.ID, f.CustomerReference)
				continue
			}
		case BucketAdvance, BucketHealthInsurance:
			if f.WorkerID == "" {
				issues.Add(generic.IssueMissingWorker, f, "fact %s: %s without worker tax id", f.ID, b)
				continue
			}
		}
		out.add(b, f)
	}
	return out
}
