// Пакет rbac — определение роли пользователя доски.
// Роль moderator выдаётся по группам IdP или realm-роли moderator.
// Все остальные аутентифицированные пользователи — обычные авторы.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleAuthor    = "author"
	RoleModerator = "moderator"
)

// ScopePaymentsConfirm — scope Service Account платёжной системы.
const ScopePaymentsConfirm = "payments:confirm"

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleAuthor:    1,
	RoleModerator: 2,
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя по группам IdP и realm-ролям.
// Без совпадений возвращает RoleAuthor.
func MapGroupsToRole(groups, realmRoles, moderatorGroups []string) string {
	moderatorSet := toSet(moderatorGroups)

	roles := []string{RoleAuthor}
	for _, g := range groups {
		if moderatorSet[g] {
			roles = append(roles, RoleModerator)
		}
	}
	for _, r := range realmRoles {
		if r == RoleModerator {
			roles = append(roles, RoleModerator)
		}
	}
	return HighestRole(roles)
}

// IsModerator — есть ли у роли права модератора.
func IsModerator(role string) bool {
	return roleWeight[role] >= roleWeight[RoleModerator]
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
