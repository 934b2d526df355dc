package combat

import "fmt"

// Token identifies one phase instance. The animation layer holds it while a
// timeline plays and hands it back to advance the controller exactly once.
type Token struct {
	Phase Phase  `json:"phase"`
	Seq   uint64 `json:"seq"`
}

// BeginResolution returns a token for the current phase instance.
// Only intro, player-result and enemy-turn are resolved by animations.
func (c *Controller) BeginResolution() (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.IsActive {
		return Token{}, ErrNoCombat
	}
	switch c.session.Phase {
	case PhaseIntro, PhasePlayerResult, PhaseEnemyTurn:
		return Token{Phase: c.session.Phase, Seq: c.seq}, nil
	}
	return Token{}, fmt.Errorf("%w: nothing to resolve in %s", ErrInvalidPhase, c.session.Phase)
}

// Strike lands the enemy attack of the enemy-turn instance t belongs to.
// A second strike with the same token returns ErrStaleToken.
func (c *Controller) Strike(t Token) (StrikeResult, error) {
	var res StrikeResult
	err := c.apply(func() error {
		if err := c.check(t); err != nil {
			return err
		}
		if t.Phase != PhaseEnemyTurn {
			return fmt.Errorf("%w: strike with %s token", ErrInvalidPhase, t.Phase)
		}
		if c.struck {
			return fmt.Errorf("%w: strike already landed", ErrStaleToken)
		}
		c.struck = true
		var err error
		res, err = c.strike()
		return err
	})
	return res, err
}

// Resolve advances out of the phase instance t belongs to
func (c *Controller) Resolve(t Token) error {
	return c.apply(func() error {
		if err := c.check(t); err != nil {
			return err
		}
		switch t.Phase {
		case PhaseIntro:
			c.resolved = true
			return c.fire(evIntroDone)
		case PhasePlayerResult:
			c.resolved = true
			return c.finishPlayerResult()
		case PhaseEnemyTurn:
			if !c.struck {
				return ErrImpactPending
			}
			c.resolved = true
			return c.finishEnemyTurn()
		}
		return fmt.Errorf("%w: nothing to resolve in %s", ErrInvalidPhase, t.Phase)
	})
}

func (c *Controller) check(t Token) error {
	if t.Seq != c.seq || t.Phase != c.session.Phase || c.resolved {
		return ErrStaleToken
	}
	if !c.session.IsActive {
		return ErrNoCombat
	}
	return nil
}
