package subject

import "errors"

// Syntax describes the tokens of the subject language.
type Syntax struct {
	// Separator joins subject tokens.
	Separator string
	// MatchOne matches exactly one token.
	MatchOne string
	// MatchAll matches every remaining token. Only valid as the last token.
	MatchAll string
}

// DefaultSyntax returns the NATS subject syntax: ".", "*" and ">".
func DefaultSyntax() Syntax {
	return Syntax{
		Separator: ".",
		MatchOne:  "*",
		MatchAll:  ">",
	}
}

// Validate reports whether the syntax can be used to tokenize subjects.
func (s Syntax) Validate() error {
	var err error
	if s.Separator == "" {
		err = errors.Join(err, errors.New("separator cannot be empty"))
	}
	if s.MatchOne == "" {
		err = errors.Join(err, errors.New("match one token cannot be empty"))
	}
	if s.MatchAll == "" {
		err = errors.Join(err, errors.New("match all token cannot be empty"))
	}
	if err != nil {
		return err
	}
	if s.MatchOne == s.MatchAll || s.MatchOne == s.Separator || s.MatchAll == s.Separator {
		return errors.New("separator, match one and match all tokens must be distinct")
	}
	return nil
}

func (s Syntax) orDefault() Syntax {
	if s == (Syntax{}) {
		return DefaultSyntax()
	}
	return s
}
