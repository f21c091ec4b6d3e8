package selector

import "github.com/devicelab-dev/signup-runner/pkg/driver"

func xpath(q string) Strategy       { return Strategy{Kind: driver.KindXPath, Query: q} }
func uiautomator(q string) Strategy { return Strategy{Kind: driver.KindUIAutomator, Query: q} }
func class(q string) Strategy       { return Strategy{Kind: driver.KindClass, Query: q} }

// defaultTargets is the built-in signup catalog. Strategy order matters:
// earlier entries are the preferred locators, later ones the fallbacks.
func defaultTargets() map[string][]Strategy {
	return map[string][]Strategy{
		"welcome.create_account": {
			xpath("//*[contains(@text, 'CREATE NEW ACCOUNT')]"),
			xpath("//*[contains(@text, 'Create new account')]"),
			xpath("//android.widget.Button[contains(@text, 'CREATE')]"),
			xpath("//*[contains(@content-desc, 'Create')]"),
		},
		"welcome.sign_in": {
			xpath("//*[contains(@text, 'SIGN IN')]"),
			xpath("//*[contains(@text, 'Sign in')]"),
		},

		"email.email_field": {
			xpath("//*[contains(@hint, 'email')]"),
			xpath("//*[contains(@hint, 'Email')]"),
			class("android.widget.EditText"),
			xpath("//*[contains(@content-desc, 'email')]"),
		},

		"password.password_field": {
			xpath("//*[contains(@hint, 'Password')]"),
			xpath("//*[contains(@hint, 'password')]"),
			class("android.widget.EditText"),
			xpath("//*[@content-desc='Password']"),
		},

		"details.day_dropdown": {
			xpath("//*[contains(@text, 'Day')]"),
			xpath("//*[contains(@hint, 'Day')]"),
			xpath("//android.widget.Spinner[1]"),
			xpath("//*[contains(@content-desc, 'Day')]"),
		},
		"details.month_dropdown": {
			xpath("//*[contains(@text, 'Month')]"),
			xpath("//*[contains(@hint, 'Month')]"),
			xpath("//android.widget.Spinner[2]"),
			xpath("//*[contains(@content-desc, 'Month')]"),
		},
		"details.year_field": {
			class("android.widget.EditText"),
			xpath("//*[contains(@hint, 'Year')]"),
			xpath("//*[contains(@hint, 'year')]"),
		},
		// Dropdown option, templated with the candidate value.
		"details.option": {
			xpath("//*[@text='${value}']"),
			xpath("//*[contains(@text, '${value}')]"),
		},

		"name.first_name_field": {
			class("android.widget.EditText"),
			xpath("//*[contains(@hint, 'First')]"),
			xpath("//*[contains(@hint, 'first')]"),
		},
		"name.last_name_field": {
			uiautomator(`new UiSelector().className("android.widget.EditText").instance(1)`),
			xpath("//*[contains(@hint, 'Last')]"),
			xpath("//*[contains(@hint, 'last')]"),
		},

		"captcha.captcha_button": {
			uiautomator(`new UiSelector().className("android.widget.Button").textContains("Press").clickable(true).enabled(true)`),
			xpath("//android.widget.Button[contains(@text,'Press')]"),
			xpath("//*[contains(@text, 'Press and hold')]"),
			xpath("//*[contains(@content-desc, 'Press')]"),
		},

		"auth.progress_bar": {
			class("android.widget.ProgressBar"),
		},
		"auth.loading_text": {
			xpath("//*[contains(@text, 'Please wait')]"),
			xpath("//*[contains(@text, 'Loading')]"),
			xpath("//*[contains(@text, 'Authenticating')]"),
		},

		"postauth.maybe_later": {
			xpath("//*[@text='MAYBE LATER']"),
			xpath("//*[contains(translate(@text,'abcdefghijklmnopqrstuvwxyz','ABCDEFGHIJKLMNOPQRSTUVWXYZ'),'MAYBE LATER')]"),
			xpath("//*[contains(@text,'Maybe later')]"),
			xpath("//*[contains(@content-desc,'Maybe later')]"),
		},
		"postauth.next": {
			xpath("//*[@text='NEXT']"),
			xpath("//*[contains(translate(@text,'abcdefghijklmnopqrstuvwxyz','ABCDEFGHIJKLMNOPQRSTUVWXYZ'),'NEXT')]"),
			xpath("//*[contains(@text,'Next')]"),
			xpath("//*[contains(@content-desc,'Next')]"),
		},
		"postauth.accept": {
			xpath("//*[@text='ACCEPT']"),
			xpath("//*[contains(translate(@text,'abcdefghijklmnopqrstuvwxyz','ABCDEFGHIJKLMNOPQRSTUVWXYZ'),'ACCEPT')]"),
			xpath("//*[contains(@text,'Accept')]"),
			xpath("//*[contains(@content-desc,'Accept')]"),
		},
		"postauth.continue": {
			xpath("//*[@text='CONTINUE TO OUTLOOK']"),
			xpath("//*[contains(translate(@text,'abcdefghijklmnopqrstuvwxyz','ABCDEFGHIJKLMNOPQRSTUVWXYZ'),'CONTINUE TO OUTLOOK')]"),
			xpath("//*[contains(@text,'Continue to Outlook')]"),
			xpath("//*[contains(@content-desc,'Continue to Outlook')]"),
		},
		"postauth.skip": {
			xpath("//*[contains(@text,'Not now')]"),
			xpath("//*[contains(@text,'Skip')]"),
			xpath("//*[contains(@text,'No thanks')]"),
			xpath("//*[contains(@text,'Maybe later')]"),
		},

		"inbox.search": {
			xpath("//*[@text='Search']"),
			xpath("//*[contains(@content-desc,'Search')]"),
			xpath("//*[contains(@text, 'Search')]"),
		},
		"inbox.inbox": {
			xpath("//*[contains(@text, 'Inbox')]"),
			xpath("//*[contains(@content-desc, 'Inbox')]"),
		},
		"inbox.compose": {
			xpath("//*[contains(@text, 'Compose')]"),
			xpath("//*[contains(@content-desc, 'Compose')]"),
		},

		"common.next_button": {
			uiautomator(`new UiSelector().textContains("Next").clickable(true).enabled(true)`),
			xpath("//*[contains(@text, 'Next')]"),
			xpath("//android.widget.Button[contains(@text, 'Next')]"),
		},
	}
}
