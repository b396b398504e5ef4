package cpa

// CPA bundles the operators of one configurable program analysis.
type CPA struct {
	Name      string
	Domain    AbstractDomain
	Transfer  TransferRelation
	Merge     MergeOperator
	Stop      StopOperator
	Precision PrecisionAdjustment

	// Relaxed marks analyses that deliberately give up soundness, e.g. by
	// bounding loops. Their results are reported as unsound.
	Relaxed bool
}

func (c *CPA) name() string {
	if c.Name == "" {
		return "analysis"
	}
	return c.Name
}

// Validate checks that every operator is present and that operators which
// need a domain have one.
func (c *CPA) Validate() error {
	if c == nil {
		return ConfigurationError{"analysis", "no analysis configured"}
	}

	fail := func(reason string) error {
		return ConfigurationError{c.name(), reason}
	}

	switch {
	case c.Transfer == nil:
		return fail("missing transfer relation")
	case c.Merge == nil:
		return fail("missing merge operator")
	case c.Stop == nil:
		return fail("missing stop operator")
	}

	switch m := c.Merge.(type) {
	case MergeJoin:
		if m.Domain == nil {
			return fail("join merge requires an abstract domain")
		}
	}

	switch s := c.Stop.(type) {
	case StopSep:
		if s.Domain == nil {
			return fail("separate stop requires an abstract domain")
		}
	case StopJoin:
		if s.Domain == nil {
			return fail("join stop requires an abstract domain")
		}
	}

	return nil
}

// Adjustment returns the precision adjustment, defaulting to StaticPrecision.
func (c *CPA) Adjustment() PrecisionAdjustment {
	if c.Precision == nil {
		return StaticPrecision{}
	}
	return c.Precision
}

// WithTransfer returns a copy of c using t as transfer relation.
func (c *CPA) WithTransfer(t TransferRelation) *CPA {
	cp := *c
	cp.Transfer = t
	return &cp
}
