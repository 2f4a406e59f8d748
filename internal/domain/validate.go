package domain

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/victornm/quizroom/internal/errors"
)

const (
	notBlankTag  = "notblank"
	notBlankText = "{0} must not be blank"

	optionRefTag  = "optionref"
	optionRefText = "{0} must match the id of one of the options"
)

var validate, translator = newValidator()

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New()
	trans, _ := ut.New(en.New()).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	// Report JSON field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	registerTranslation(v, trans, notBlankTag, notBlankText)
	registerTranslation(v, trans, optionRefTag, optionRefText)

	v.RegisterStructValidation(questionStructLevel, Question{})
	v.RegisterStructValidation(sessionStructLevel, Session{})

	return v, trans
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(
		tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// questionStructLevel checks that the correct answer references one of the question's options.
func questionStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if q.CorrectAnswerID == "" {
		return
	}

	if _, ok := q.Option(q.CorrectAnswerID); !ok {
		sl.ReportError(q.CorrectAnswerID, "correctAnswer", "CorrectAnswerID", optionRefTag, "")
	}
}

func sessionStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Session)
	if s.StartedAt.IsZero() {
		sl.ReportError(s.StartedAt, "startedAt", "StartedAt", "required", "")
	}
}

// validateEntity runs struct validation and turns failures into a single user-facing invalid argument error.
func validateEntity(kind string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Internal(err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}

	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid %s data: %s", kind, strings.Join(msgs, "; ")),
		errors.WithCause(err),
	)
}
