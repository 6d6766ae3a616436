// Package fragment classifies author markup into the pieces a panel mount
// needs: display markup, head imports, lifecycle scripts and modules.
//
// Head META, LINK and STYLE elements are copied into the live head at
// classification time. Head scripts are both recorded as imports and
// copied. Body scripts with src go to the body script injector, module
// scripts are collected, and inline scripts with a run attribute are
// wrapped into the matching lifecycle hook function.
package fragment
