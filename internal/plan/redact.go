package plan

import "regexp"

// Кавычка может быть обычной или экранированной внутри обёртки chroot ('\'')
const quoteRe = `('\\''|'|")`

var (
	// 'user:password' | chpasswd и "user:password" | chpasswd
	chpasswdRe = regexp.MustCompile(quoteRe + `([A-Za-z0-9_.-]+):[^\n]*?` + quoteRe + `(\s*\|\s*chpasswd)`)

	// printf '%s' 'passphrase' | cryptsetup, echo -n "passphrase" | cryptsetup
	cryptRe = regexp.MustCompile(`((?:printf\s+(?:'%s'|'\\''%s'\\'')|echo(?:\s+-n)?)\s+)` +
		quoteRe + `[^\n]*?` + quoteRe + `(\s*\|\s*cryptsetup)`)
)

// Redact заменяет пароли chpasswd и ключи cryptsetup в тексте команды.
// Правило применяется к любому тексту, который попадает в лог или на экран.
func Redact(text string) string {
	text = chpasswdRe.ReplaceAllString(text, `${1}${2}:`+Placeholder+`${3}${4}`)
	text = cryptRe.ReplaceAllString(text, `${1}${2}`+Placeholder+`${3}${4}`)
	return text
}
